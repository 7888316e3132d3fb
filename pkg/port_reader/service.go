package port_reader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
	"github.com/NotCoffee418/dsmr_telegram/pkg/interpreter"
	"github.com/NotCoffee418/dsmr_telegram/pkg/logging"
	"github.com/NotCoffee418/dsmr_telegram/pkg/metrics"
	"github.com/jacobsa/go-serial/serial"
)

const maxConsecutiveErrors = 10

var ErrNotConnected = errors.New("serial port not connected")

// NewP1Reader creates a reader for the P1 port at port. Every telegram is
// decoded with parser into a registry from newRegistry.
func NewP1Reader(port string, baudrate uint, parser *dsmr.Parser, newRegistry RegistryFactory) *P1Reader {
	reader := &P1Reader{
		port:        port,
		baudrate:    baudrate,
		parser:      parser,
		newRegistry: newRegistry,
		logger:      logging.Component("p1_reader"),
	}
	reader.open = reader.openSerial
	return reader
}

// StartReading reads telegrams in a goroutine until StopReading is called
// or maxConsecutiveErrors telegrams in a row fail. handleReading runs in
// its own goroutine per reading.
func (p *P1Reader) StartReading(
	handleReading func(reading *interpreter.Reading),
	handleError func(error),
) {
	p.stopSignal.Store(false)

	go func() {
		consecutiveErrors := 0
		var lastError error

		if err := p.connect(); err != nil {
			handleError(err)
			return
		}

		for consecutiveErrors < maxConsecutiveErrors {
			if p.stopSignal.Load() {
				p.logger.Info().Msg("stop signal received, disconnecting")
				p.disconnect()
				return
			}

			telegram, err := p.readTelegram()
			if err != nil {
				if p.stopSignal.Load() {
					return
				}
				metrics.RecordReadError()
				consecutiveErrors++
				lastError = err
				p.logger.Warn().Err(err).Msgf("error reading telegram (%d/%d)", consecutiveErrors, maxConsecutiveErrors)
				if errors.Is(err, io.EOF) {
					break
				}
				time.Sleep(time.Second)
				continue
			}

			reading, err := p.DecodeTelegram(telegram)
			if err != nil {
				consecutiveErrors++
				lastError = err
				p.logger.Warn().Err(err).Msgf("skipping telegram (%d/%d)", consecutiveErrors, maxConsecutiveErrors)
				continue
			}

			p.readingMutex.Lock()
			p.latestReading = reading
			p.readingMutex.Unlock()

			go handleReading(reading)
			consecutiveErrors = 0
		}

		p.logger.Error().Err(lastError).Msg("stopping reader")
		handleError(lastError)
		p.disconnect()
	}()
}

func (p *P1Reader) StopReading() {
	p.stopSignal.Store(true)
	p.disconnect()
}

func (p *P1Reader) GetLatestReading() *interpreter.Reading {
	p.readingMutex.RLock()
	defer p.readingMutex.RUnlock()
	return p.latestReading
}

// DecodeTelegram decodes one framed telegram into a fresh registry.
func (p *P1Reader) DecodeTelegram(telegram []byte) (*interpreter.Reading, error) {
	reg, err := p.newRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}

	start := time.Now()
	_, err = p.parser.Parse(reg, telegram)
	present := 0
	if err == nil {
		reg.ForEach(func(f *dsmr.Field) {
			if f.Present() {
				present++
			}
		})
	}
	metrics.RecordTelegram(err, time.Since(start), present)
	if err != nil {
		return nil, fmt.Errorf("failed to decode telegram: %w", err)
	}
	return interpreter.NewReading(reg, start), nil
}

func (p *P1Reader) openSerial() (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        p.port,
		BaudRate:        p.baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
}

// Open the connection to the P1 port.
func (p *P1Reader) connect() error {
	port, err := p.open()
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	p.portMutex.Lock()
	p.serialPort = port
	p.portMutex.Unlock()
	p.lineReader = bufio.NewReader(port)
	p.logger.Info().Str("port", p.port).Msg("connected to P1 port")
	return nil
}

func (p *P1Reader) disconnect() {
	p.portMutex.Lock()
	defer p.portMutex.Unlock()
	if p.serialPort != nil {
		p.serialPort.Close()
		p.serialPort = nil
		p.logger.Info().Msg("disconnected from P1 port")
	}
}

func (p *P1Reader) readTelegram() ([]byte, error) {
	if p.lineReader == nil {
		return nil, ErrNotConnected
	}
	return ReadTelegram(p.lineReader)
}

// ReadTelegram returns the next telegram on r, from the line starting
// with '/' up to and including the line starting with '!'. Lines before
// the first '/' are dropped, which happens when reading starts halfway
// through a telegram.
func ReadTelegram(r *bufio.Reader) ([]byte, error) {
	var buffer bytes.Buffer
	inTelegram := false

	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return nil, err
		}

		if bytes.HasPrefix(line, []byte("/")) {
			buffer.Reset()
			buffer.Write(line)
			inTelegram = true
		} else if inTelegram {
			buffer.Write(line)
			if bytes.HasPrefix(bytes.TrimSpace(line), []byte("!")) {
				return buffer.Bytes(), nil
			}
		}
	}
}
