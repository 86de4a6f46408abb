package topology

import (
	"github.com/sarchlab/dplink/sideband"
)

//go:generate mockgen -destination "mock_topology_test.go" -package $GOPACKAGE -write_package_comment=false github.com/sarchlab/dplink/topology AuxChannel,Messenger,RequestMessenger

// AuxChannel is the DPCD and I2C access to the device attached to the
// source.
type AuxChannel interface {
	Read(addr uint32, buf []byte) error
	Write(addr uint32, data []byte) error
	I2CRead(dev uint8, offset uint16, buf []byte) error
	I2CWrite(dev uint8, data []byte) error
}

// Messenger carries sideband transactions from the source.
type Messenger interface {
	Transact(h sideband.Header, body []byte) ([]byte, error)
}

// RequestMessenger receives down requests and sends down replies on the
// receiver side.
type RequestMessenger interface {
	ReceiveRequest() (sideband.Request, bool, error)
	SendReply(h sideband.Header, body []byte) error
}

const (
	delay1ms          = 1000
	actDelayUs        = 10000
	statusPollDelayUs = 1000

	// DefaultStatusPollLimit bounds the polls of the payload table status.
	DefaultStatusPollLimit = 30

	edidAddress     = 0x50
	segmentPointer  = 0x30
	remoteChunkSize = 16
)
