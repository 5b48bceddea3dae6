package main

import "github.com/MeKo-Tech/tourtiles/internal/cmd"

func main() {
	cmd.Execute()
}
