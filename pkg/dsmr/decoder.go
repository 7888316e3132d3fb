package dsmr

import "fmt"

// UnitPolicy decides what happens when a value carries a different unit
// than the field expects.
type UnitPolicy int

const (
	// UnitStrict fails the value on a unit mismatch.
	UnitStrict UnitPolicy = iota
	// UnitTolerant accepts any unit text after the '*'.
	UnitTolerant
)

func (p UnitPolicy) String() string {
	switch p {
	case UnitStrict:
		return "strict"
	case UnitTolerant:
		return "tolerant"
	default:
		return fmt.Sprintf("UnitPolicy(%d)", int(p))
	}
}

// ParseUnitPolicy maps the config spelling to a policy.
func ParseUnitPolicy(s string) (UnitPolicy, error) {
	switch s {
	case "", "strict":
		return UnitStrict, nil
	case "tolerant":
		return UnitTolerant, nil
	default:
		return UnitStrict, fmt.Errorf("unknown unit mismatch policy %q", s)
	}
}

const checksumLen = 4

// DecodeString reads "(text)" starting at pos. The text is copied
// verbatim and must be between min and max bytes long.
func DecodeString(data []byte, pos, end, min, max int) (string, int, error) {
	if pos >= end || data[pos] != '(' {
		return "", pos, fail(ErrValue, pos, "missing (")
	}
	start := pos + 1
	stop := start
	for stop < end && data[stop] != ')' {
		stop++
	}
	if stop == end {
		return "", stop, fail(ErrValue, stop, "missing )")
	}
	if n := stop - start; n < min || n > max {
		return "", start, fail(ErrValue, start, "invalid string length")
	}
	return string(data[start:stop]), stop + 1, nil
}

// DecodeNumber reads "(digits[.digits][*unit])" starting at pos. The
// result is scaled to exactly maxDecimals implied decimals, so "1.2" with
// three decimals is 1200. A unit is required when unit is not empty.
func DecodeNumber(data []byte, pos, end, maxDecimals int, unit string, policy UnitPolicy) (uint32, int, error) {
	if pos >= end || data[pos] != '(' {
		return 0, pos, fail(ErrValue, pos, "missing (")
	}
	next := pos + 1
	var value uint64

	for next < end && !isNumberStop(data[next], true) {
		if data[next] < '0' || data[next] > '9' {
			return 0, next, fail(ErrValue, next, "invalid number")
		}
		value = value*10 + uint64(data[next]-'0')
		if value > maxNumber {
			return 0, next, fail(ErrValue, next, "number too large")
		}
		next++
	}

	decimals := maxDecimals
	if maxDecimals > 0 && next < end && data[next] == '.' {
		next++
		for next < end && !isNumberStop(data[next], false) && decimals > 0 {
			if data[next] < '0' || data[next] > '9' {
				return 0, next, fail(ErrValue, next, "invalid number")
			}
			value = value*10 + uint64(data[next]-'0')
			decimals--
			next++
		}
	}
	for ; decimals > 0; decimals-- {
		value *= 10
	}
	if value > maxNumber {
		return 0, pos + 1, fail(ErrValue, pos+1, "number too large")
	}

	if unit != "" {
		if next >= end || data[next] != '*' {
			return 0, next, fail(ErrValue, next, "missing unit")
		}
		next++
		unitStart := next
		for next < end && data[next] != ')' {
			next++
		}
		if policy == UnitStrict && string(data[unitStart:next]) != unit {
			return 0, unitStart, fail(ErrValue, unitStart, "invalid unit")
		}
	}

	if next >= end || data[next] != ')' {
		return 0, next, fail(ErrValue, next, "extra data")
	}
	return uint32(value), next + 1, nil
}

const maxNumber = 1<<32 - 1

func isNumberStop(c byte, allowDot bool) bool {
	return c == '*' || c == ')' || (allowDot && c == '.')
}

// DecodeChecksum reads the four hex digits that follow the '!'.
func DecodeChecksum(data []byte, pos, end int) (uint16, int, error) {
	if pos+checksumLen > end {
		return 0, pos, fail(ErrChecksum, pos, "incomplete or malformed checksum")
	}
	var sum uint16
	for i := pos; i < pos+checksumLen; i++ {
		v, ok := hexValue(data[i])
		if !ok {
			return 0, pos, fail(ErrChecksum, pos, "incomplete or malformed checksum")
		}
		sum = sum<<4 | uint16(v)
	}
	return sum, pos + checksumLen, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
