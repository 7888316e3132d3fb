// p1decode decodes P1 telegrams from a file or stdin and prints every
// field that is present.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/NotCoffee418/dsmr_telegram/pkg/catalogue"
	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
	"github.com/NotCoffee418/dsmr_telegram/pkg/esmutils"
	"github.com/NotCoffee418/dsmr_telegram/pkg/interpreter"
	"github.com/NotCoffee418/dsmr_telegram/pkg/logging"
	"github.com/rs/zerolog/log"
)

var errDecode = errors.New("one or more telegrams failed to decode")

func main() {
	logging.Init("p1decode")
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Error().Err(err).Msg("p1decode failed")
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	flags := flag.NewFlagSet("p1decode", flag.ContinueOnError)
	flags.SetOutput(stdout)
	variant := flags.String("variant", catalogue.VariantFull, "built-in catalogue: full, nl or be")
	catalogueFile := flags.String("catalogue", "", "TOML or YAML catalogue file, replaces -variant")
	noChecksum := flags.Bool("no-checksum", false, "do not verify the CRC")
	strictFields := flags.Bool("strict-fields", false, "fail on fields missing from the catalogue")
	units := flags.String("units", "strict", "unit mismatch policy: strict or tolerant")
	asJSON := flags.Bool("json", false, "print readings as JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}

	policy, err := dsmr.ParseUnitPolicy(*units)
	if err != nil {
		return err
	}
	opts := dsmr.DefaultOptions()
	opts.VerifyChecksum = !*noChecksum
	opts.ErrorOnUnknownField = *strictFields
	opts.UnitMismatch = policy

	var reg *dsmr.Registry
	if *catalogueFile != "" {
		reg, err = catalogue.LoadRegistry(*catalogueFile)
	} else {
		reg, err = catalogue.NewRegistry(*variant)
	}
	if err != nil {
		return err
	}

	input := stdin
	if flags.NArg() > 0 {
		f, err := os.Open(flags.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}
	data, err := io.ReadAll(input)
	if err != nil {
		return err
	}

	parser := dsmr.NewParser(opts)
	parser.SetLogger(log.Logger)
	failed := 0
	count := 0
	for pos := 0; ; {
		start := bytes.IndexByte(data[pos:], '/')
		if start < 0 {
			break
		}
		pos += start
		count++

		next, err := parser.Parse(reg, data[pos:])
		if err != nil {
			failed++
			fmt.Fprintf(stdout, "telegram %d at byte %d: %v\n", count, pos, err)
			pos++
			continue
		}
		if *asJSON {
			out, err := json.Marshal(interpreter.NewReading(reg, time.Now().UTC()))
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, string(out))
		} else {
			printFields(stdout, count, reg)
		}
		pos += next
	}

	if count == 0 {
		return errors.New("no telegram found")
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errDecode, failed, count)
	}
	return nil
}

func printFields(w io.Writer, n int, reg *dsmr.Registry) {
	fmt.Fprintf(w, "telegram %d\n", n)
	reg.ForEach(func(f *dsmr.Field) {
		if !f.Present() {
			return
		}
		fmt.Fprintf(w, "  %-30s %s\n", f.Name(), formatValue(f))
	})
}

func formatValue(f *dsmr.Field) string {
	switch v := f.Value().(type) {
	case dsmr.FixedValue:
		return esmutils.Thousandths(v.Int(), f.Unit())
	case dsmr.TimestampedFixedValue:
		return esmutils.Thousandths(v.Int(), f.Unit()) + " at " + v.Timestamp
	case uint32:
		if f.Unit() != "" {
			return fmt.Sprintf("%d %s", v, f.Unit())
		}
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
