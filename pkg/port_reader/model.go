package port_reader

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"

	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
	"github.com/NotCoffee418/dsmr_telegram/pkg/interpreter"
	"github.com/rs/zerolog"
)

// RegistryFactory builds the registry a single telegram is decoded into.
type RegistryFactory func() (*dsmr.Registry, error)

type P1Reader struct {
	port          string
	baudrate      uint
	serialPort    io.ReadWriteCloser
	portMutex     sync.Mutex
	lineReader    *bufio.Reader
	latestReading *interpreter.Reading
	readingMutex  sync.RWMutex
	stopSignal    atomic.Bool

	parser      *dsmr.Parser
	newRegistry RegistryFactory
	logger      zerolog.Logger

	// open is replaced in tests.
	open func() (io.ReadWriteCloser, error)
}
