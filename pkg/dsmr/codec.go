package dsmr

// DecodeContext is what a codec gets to see of the telegram being parsed.
type DecodeContext struct {
	// Data is the complete telegram; offsets are relative to its start.
	Data []byte
	// Limit is the offset of the terminating '!'. Codecs that span lines
	// must not read past it.
	Limit int
	Units UnitPolicy
}

// Codec decodes the value part of a data line. pos points just after the
// obis id, end at the line break. The returned offset is where decoding
// stopped; a codec may return an offset past end when the value continues
// on the next line.
type Codec interface {
	Decode(ctx *DecodeContext, pos, end int) (any, int, error)
}

// RawCodec keeps the rest of the line as is.
type RawCodec struct{}

func (RawCodec) Decode(ctx *DecodeContext, pos, end int) (any, int, error) {
	return string(ctx.Data[pos:end]), end, nil
}

type StringCodec struct {
	Min, Max int
}

func (c StringCodec) Decode(ctx *DecodeContext, pos, end int) (any, int, error) {
	s, next, err := DecodeString(ctx.Data, pos, end, c.Min, c.Max)
	if err != nil {
		return nil, next, err
	}
	return s, next, nil
}

// TimestampCodec keeps a YYMMDDhhmmssX timestamp as a string. X is S or W
// for summer or winter time; converting it is left to the caller.
type TimestampCodec struct{}

func (TimestampCodec) Decode(ctx *DecodeContext, pos, end int) (any, int, error) {
	return StringCodec{Min: timestampLen, Max: timestampLen}.Decode(ctx, pos, end)
}

const (
	timestampLen      = 13
	shortTimestampLen = 12
	fixedDecimals     = 3
)

// FixedCodec decodes a three decimal number with a unit into a FixedValue.
type FixedCodec struct {
	Unit string
}

func (c FixedCodec) Decode(ctx *DecodeContext, pos, end int) (any, int, error) {
	v, next, err := DecodeNumber(ctx.Data, pos, end, fixedDecimals, c.Unit, ctx.Units)
	if err != nil {
		return nil, next, err
	}
	return FixedValue{Raw: v}, next, nil
}

// IntCodec decodes a whole number, with a unit when Unit is set.
type IntCodec struct {
	Unit string
}

func (c IntCodec) Decode(ctx *DecodeContext, pos, end int) (any, int, error) {
	v, next, err := DecodeNumber(ctx.Data, pos, end, 0, c.Unit, ctx.Units)
	if err != nil {
		return nil, next, err
	}
	return v, next, nil
}

// TimestampedFixedCodec decodes a timestamp directly followed by a fixed
// value, e.g. 0-1:24.2.1(150117180000W)(00473.789*m3).
type TimestampedFixedCodec struct {
	Unit string
}

func (c TimestampedFixedCodec) Decode(ctx *DecodeContext, pos, end int) (any, int, error) {
	ts, next, err := DecodeString(ctx.Data, pos, end, timestampLen, timestampLen)
	if err != nil {
		return nil, next, err
	}
	v, next, err := DecodeNumber(ctx.Data, next, end, fixedDecimals, c.Unit, ctx.Units)
	if err != nil {
		return nil, next, err
	}
	return TimestampedFixedValue{FixedValue: FixedValue{Raw: v}, Timestamp: ts}, next, nil
}

// TwoLineTimestampedFixedCodec handles older gas meters that put the
// reading on its own line:
//
//	0-1:24.3.0(150623120000)(00)(60)(1)(0-1:24.2.1)(m3)
//	(01100.658)
type TwoLineTimestampedFixedCodec struct {
	Unit string
}

func (c TwoLineTimestampedFixedCodec) Decode(ctx *DecodeContext, pos, end int) (any, int, error) {
	data := ctx.Data
	ts, next, err := DecodeString(data, pos, end, shortTimestampLen, shortTimestampLen)
	if err != nil {
		return nil, next, err
	}
	for i := 0; i < 3; i++ {
		if _, next, err = DecodeNumber(data, next, end, 0, "", ctx.Units); err != nil {
			return nil, next, err
		}
	}

	if next >= end || data[next] != '(' {
		return nil, next, fail(ErrValue, next, "missing (")
	}
	_, next, err = ParseObisID(data, next+1, end)
	if err != nil {
		return nil, next, err
	}
	if next >= end || data[next] != ')' {
		return nil, next, fail(ErrValue, next, "missing )")
	}
	next++

	unitStart := next
	unit, next, err := DecodeString(data, next, end, 0, end-next)
	if err != nil {
		return nil, next, err
	}
	if ctx.Units == UnitStrict && unit != c.Unit {
		return nil, unitStart, fail(ErrValue, unitStart, "invalid unit")
	}
	if next != end {
		return nil, next, fail(ErrTrailingData, next, "trailing characters on data line")
	}

	// The reading itself is on the next line.
	start := end
	if start < ctx.Limit && data[start] == '\r' {
		start++
	}
	if start < ctx.Limit && data[start] == '\n' {
		start++
	}
	lineEnd := lineBreak(data, start, ctx.Limit)
	if lineEnd < 0 {
		lineEnd = ctx.Limit
	}
	v, next, err := DecodeNumber(data, start, lineEnd, fixedDecimals, "", ctx.Units)
	if err != nil {
		return nil, next, err
	}
	if next != lineEnd {
		return nil, next, fail(ErrTrailingData, next, "trailing characters on data line")
	}
	return TimestampedFixedValue{FixedValue: FixedValue{Raw: v}, Timestamp: ts}, next, nil
}
