package dsmr

import "github.com/sigurn/crc16"

// crcTable is the DSMR P1 checksum, CRC16_ARC: poly 0xA001 (reflected 0x8005),
// init 0, no final xor.
var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// CRC is the running state of a telegram checksum. The zero value is not a
// valid state, use NewCRC.
type CRC struct {
	state uint16
}

func NewCRC() CRC {
	return CRC{state: crc16.Init(crcTable)}
}

func (c CRC) Update(b byte) CRC {
	return CRC{state: crc16.Update(c.state, []byte{b}, crcTable)}
}

func (c CRC) UpdateBytes(p []byte) CRC {
	return CRC{state: crc16.Update(c.state, p, crcTable)}
}

// Sum returns the checksum of everything fed so far.
func (c CRC) Sum() uint16 {
	return crc16.Complete(c.state, crcTable)
}

// Checksum computes the CRC over p in one go.
func Checksum(p []byte) uint16 {
	return NewCRC().UpdateBytes(p).Sum()
}
