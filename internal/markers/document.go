package markers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

var (
	// ErrInvalidJSON is returned for documents that do not parse.
	ErrInvalidJSON = errors.New("invalid JSON document")
	// ErrNoHouses is returned when the document has no top-level "houses" object.
	ErrNoHouses = errors.New(`document has no "houses" object`)
)

// Indent is the indentation of written documents.
const Indent = "  "

// HouseResult describes one house that received marker positions.
type HouseResult struct {
	ID    string `yaml:"id"`
	Rooms int    `yaml:"rooms"`
}

// Result is the outcome of Apply.
type Result struct {
	Updated []HouseResult `yaml:"updated"`
	Skipped []string      `yaml:"skipped,omitempty"` // houses without tour360.rooms
}

// Apply sets tour360.markerPositions on every house that lists tour360.rooms
// and returns the re-indented document. Key order and all other content are
// kept as they are; houses without a room list are not modified.
func Apply(doc []byte) ([]byte, Result, error) {
	var res Result

	if !gjson.ValidBytes(doc) {
		return nil, res, ErrInvalidJSON
	}

	houses := gjson.GetBytes(doc, "houses")
	if !houses.IsObject() {
		return nil, res, ErrNoHouses
	}

	type update struct {
		id  string
		raw []byte
	}
	var updates []update

	houses.ForEach(func(key, house gjson.Result) bool {
		id := key.String()
		rooms := house.Get("tour360.rooms")
		if !house.Get("tour360").IsObject() || !rooms.IsArray() {
			res.Skipped = append(res.Skipped, id)
			return true
		}

		var names []string
		for _, r := range rooms.Array() {
			names = append(names, r.String())
		}

		updates = append(updates, update{id: id, raw: MarshalPositions(Positions(names))})
		res.Updated = append(res.Updated, HouseResult{ID: id, Rooms: len(names)})
		return true
	})

	out := doc
	for _, u := range updates {
		path := "houses." + escapePath(u.id) + ".tour360.markerPositions"
		var err error
		out, err = sjson.SetRawBytes(out, path, u.raw)
		if err != nil {
			return nil, Result{}, fmt.Errorf("failed to set markers for house %s: %w", u.id, err)
		}
	}

	return Format(out), res, nil
}

// Format re-indents a JSON document with Indent, one value per line.
func Format(doc []byte) []byte {
	return pretty.PrettyOptions(doc, &pretty.Options{
		Indent:   Indent,
		SortKeys: false,
	})
}

// escapePath escapes a single object key for use in an sjson path.
func escapePath(key string) string {
	var b strings.Builder
	for _, c := range key {
		switch c {
		case '.', '*', '?', '\\', '|', '#', '@', '!', '=', '<', '>', '%', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
