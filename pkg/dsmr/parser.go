package dsmr

import "github.com/rs/zerolog"

// Options control how strict the parser is.
type Options struct {
	// VerifyChecksum checks the CRC after the '!'. Without it only the
	// position of the '!' is used.
	VerifyChecksum bool
	// ErrorOnUnknownField fails on data lines no registry field claims.
	// Otherwise those lines are skipped.
	ErrorOnUnknownField bool
	UnitMismatch        UnitPolicy
	// Yield, when set, is called between data lines. Schedulers that
	// must not be starved can hook in here; it does not affect results.
	Yield func()
}

func DefaultOptions() Options {
	return Options{
		VerifyChecksum: true,
		UnitMismatch:   UnitStrict,
	}
}

type Parser struct {
	opts   Options
	logger zerolog.Logger
}

func NewParser(opts Options) *Parser {
	return &Parser{opts: opts, logger: zerolog.Nop()}
}

func (p *Parser) SetLogger(logger zerolog.Logger) {
	p.logger = logger.With().Str("component", "dsmr_parser").Logger()
}

func (p *Parser) Options() Options {
	return p.opts
}

// Parse is a shortcut for NewParser(opts).Parse(reg, data).
func Parse(reg *Registry, data []byte, opts Options) (int, error) {
	return NewParser(opts).Parse(reg, data)
}

// Parse decodes one telegram into reg. data must start with the '/' and
// contain at least the '!' (and the checksum when it is verified). The
// returned offset is the first byte after the telegram.
//
// On error the registry contents are undefined; parse the next telegram
// into it or build a fresh one.
func (p *Parser) Parse(reg *Registry, data []byte) (int, error) {
	reg.ResetPresence()

	if len(data) == 0 || data[0] != '/' {
		return 0, fail(ErrFraming, 0, "data should start with /")
	}

	bang, next, err := p.scanFrame(data)
	if err != nil {
		return 0, err
	}

	ctx := &DecodeContext{Data: data, Limit: bang, Units: p.opts.UnitMismatch}
	if err := p.parseData(reg, ctx, 1); err != nil {
		return 0, err
	}
	return next, nil
}

// scanFrame finds the terminating '!' and checks the CRC over everything
// from the '/' up to and including it.
func (p *Parser) scanFrame(data []byte) (bang, next int, err error) {
	crc := NewCRC().Update(data[0])
	bang = 1
	for bang < len(data) && data[bang] != '!' {
		if p.opts.VerifyChecksum {
			crc = crc.Update(data[bang])
		}
		bang++
	}
	if bang >= len(data) {
		return 0, 0, fail(ErrFraming, bang, "no checksum found")
	}

	if !p.opts.VerifyChecksum {
		next = bang
		for next < len(data) && data[next] != '\r' && data[next] != '\n' {
			next++
		}
		return bang, next, nil
	}

	crc = crc.Update(data[bang])
	sum, next, err := DecodeChecksum(data, bang+1, len(data))
	if err != nil {
		return 0, 0, err
	}
	if sum != crc.Sum() {
		return 0, 0, fail(ErrChecksum, bang+1, "checksum mismatch")
	}
	return bang, next, nil
}

func (p *Parser) parseData(reg *Registry, ctx *DecodeContext, start int) error {
	data, end := ctx.Data, ctx.Limit

	// The identification line looks like XXX5<id>: a three letter
	// manufacturer code and a baud rate character. '5' is what DSMR
	// meters send, older DSMR 2.x meters send the mode D '3'.
	lineEnd := lineBreak(data, start, end)
	if lineEnd < 0 {
		return fail(ErrFraming, end, "last data line not terminated by a line break")
	}
	if lineEnd-start < 4 || (data[start+3] != '5' && data[start+3] != '3') {
		return fail(ErrHeader, start, "invalid identification string")
	}
	if f := reg.Lookup(IdentificationID); f != nil {
		if err := p.decodeField(ctx, f, start, lineEnd); err != nil {
			return err
		}
	}

	pos := lineEnd + 1
	for pos < end {
		lineEnd = lineBreak(data, pos, end)
		if lineEnd < 0 {
			return fail(ErrFraming, end, "last data line not terminated by a line break")
		}
		if lineEnd == pos {
			pos++
			continue
		}
		next, err := p.parseLine(reg, ctx, pos, lineEnd)
		if err != nil {
			return err
		}
		pos = next
		if p.opts.Yield != nil {
			p.opts.Yield()
		}
	}
	return nil
}

// parseLine decodes the line [pos, end) and returns where scanning for the
// next line continues.
func (p *Parser) parseLine(reg *Registry, ctx *DecodeContext, pos, end int) (int, error) {
	id, idEnd, err := ParseObisID(ctx.Data, pos, end)
	if err != nil {
		return 0, err
	}

	f := reg.Lookup(id)
	if f == nil {
		if p.opts.ErrorOnUnknownField {
			return 0, fail(ErrUnknownField, pos, "unknown field "+id.String())
		}
		p.logger.Debug().Str("obis", id.String()).Msg("skipping unknown field")
		return end + 1, nil
	}
	if f.present {
		return 0, fail(ErrDuplicateField, pos, "duplicate field "+f.Name())
	}

	value, next, err := f.spec.Codec.Decode(ctx, idEnd, end)
	if err != nil {
		return 0, err
	}
	switch {
	case next < end:
		return 0, fail(ErrTrailingData, next, "trailing characters on data line")
	case next > end:
		// The value continued on the following line(s).
		f.value, f.present = value, true
		return next, nil
	}
	f.value, f.present = value, true
	return end + 1, nil
}

// decodeField runs a field codec over a whole line that has no obis id in
// front, which is how the identification line is offered.
func (p *Parser) decodeField(ctx *DecodeContext, f *Field, pos, end int) error {
	value, next, err := f.spec.Codec.Decode(ctx, pos, end)
	if err != nil {
		return err
	}
	if next != end {
		return fail(ErrTrailingData, next, "trailing characters on identification line")
	}
	f.value, f.present = value, true
	return nil
}

// lineBreak returns the offset of the first '\r' or '\n' in [pos, end), or
// -1.
func lineBreak(data []byte, pos, end int) int {
	for i := pos; i < end; i++ {
		if data[i] == '\r' || data[i] == '\n' {
			return i
		}
	}
	return -1
}
