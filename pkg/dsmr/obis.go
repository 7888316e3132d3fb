package dsmr

import (
	"bytes"
	"fmt"
)

// ObisID identifies a value in a telegram, e.g. 1-0:1.8.1 for the
// tariff 1 energy delivered to the client.
type ObisID [6]byte

// IdentificationID is never sent by a meter. The parser hands the
// identification line to the registry under this id.
var IdentificationID = ObisID{255, 255, 255, 255, 255, 255}

// NewObisID builds an id from up to six parts. Missing parts are 255,
// which is what the parser fills in for ids written without them.
func NewObisID(parts ...byte) ObisID {
	id := IdentificationID
	copy(id[:], parts)
	return id
}

// Compare orders ids lexicographically by part.
func (id ObisID) Compare(other ObisID) int {
	return bytes.Compare(id[:], other[:])
}

func (id ObisID) Less(other ObisID) bool {
	return id.Compare(other) < 0
}

func (id ObisID) String() string {
	s := fmt.Sprintf("%d-%d:%d.%d.%d", id[0], id[1], id[2], id[3], id[4])
	if id[5] != 255 {
		s += fmt.Sprintf(".%d", id[5])
	}
	return s
}

// ParseObisID reads an id of the form 1-2:3.4.5.6 starting at pos. It
// stops at the first byte that does not fit the current part and returns
// the offset of that byte.
func ParseObisID(data []byte, pos, end int) (ObisID, int, error) {
	var id ObisID
	part := 0
	next := pos
scan:
	for next < end {
		c := data[next]
		switch {
		case c >= '0' && c <= '9':
			digit := c - '0'
			if id[part] > 25 || (id[part] == 25 && digit > 5) {
				return ObisID{}, next, fail(ErrObisID, next, "obis id has number over 255")
			}
			id[part] = id[part]*10 + digit
		case part == 0 && c == '-':
			part++
		case part == 1 && c == ':':
			part++
		case part > 1 && part < 5 && c == '.':
			part++
		default:
			break scan
		}
		next++
	}
	if next == pos {
		return ObisID{}, pos, fail(ErrObisID, pos, "obis id empty")
	}
	for part++; part < len(id); part++ {
		id[part] = 255
	}
	return id, next, nil
}

// MustParseObisID parses a complete id string, for catalogues and tests.
func MustParseObisID(s string) ObisID {
	id, err := ParseObisIDString(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseObisIDString parses s and requires the whole string to be consumed.
func ParseObisIDString(s string) (ObisID, error) {
	data := []byte(s)
	id, next, err := ParseObisID(data, 0, len(data))
	if err != nil {
		return ObisID{}, err
	}
	if next != len(data) {
		return ObisID{}, fail(ErrObisID, next, fmt.Sprintf("unexpected %q in obis id", data[next]))
	}
	return id, nil
}
