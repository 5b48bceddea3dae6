// Package markers lays out room-to-room navigation markers for 360° tours.
package markers

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Position is a marker direction inside a panorama, in degrees.
type Position struct {
	Yaw   int `json:"yaw"`
	Pitch int `json:"pitch"`
}

// Link is a marker from one room to another.
type Link struct {
	Room     string
	Position Position
}

// RoomMarkers holds the markers shown in one room.
type RoomMarkers struct {
	Room  string
	Links []Link
}

// Positions spreads, for every room, the markers to all other rooms evenly
// over 360°: the j-th other room gets yaw floor(j*360/(N-1)) and pitch 0.
// Output order follows the input order.
func Positions(rooms []string) []RoomMarkers {
	out := make([]RoomMarkers, 0, len(rooms))
	seen := make(map[string]int, len(rooms))

	for _, room := range rooms {
		others := make([]string, 0, len(rooms))
		for _, r := range rooms {
			if r != room {
				others = append(others, r)
			}
		}

		rm := RoomMarkers{Room: room, Links: make([]Link, 0, len(others))}
		slot := make(map[string]int, len(others))
		for j, other := range others {
			l := Link{Room: other, Position: Position{Yaw: j * 360 / len(others)}}
			if k, ok := slot[other]; ok {
				rm.Links[k] = l
				continue
			}
			slot[other] = len(rm.Links)
			rm.Links = append(rm.Links, l)
		}

		// repeated names keep their first slot and take the last value
		if i, ok := seen[room]; ok {
			out[i] = rm
			continue
		}
		seen[room] = len(out)
		out = append(out, rm)
	}
	return out
}

// MarshalPositions renders the layout as a JSON object keeping room order.
func MarshalPositions(rooms []RoomMarkers) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, rm := range rooms {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, rm.Room)
		buf.WriteByte('{')
		for j, l := range rm.Links {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, l.Room)
			buf.WriteString(`{"yaw":`)
			buf.WriteString(strconv.Itoa(l.Position.Yaw))
			buf.WriteString(`,"pitch":`)
			buf.WriteString(strconv.Itoa(l.Position.Pitch))
			buf.WriteByte('}')
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// writeKey quotes key like the rooms array is quoted, so "&", "<" and ">"
// stay literal.
func writeKey(buf *bytes.Buffer, key string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(key) // strings always encode
	buf.Truncate(buf.Len() - 1)
	buf.WriteByte(':')
}
