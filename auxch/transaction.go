package auxch

import "fmt"

// Command is the 4-bit AUX request command.
type Command uint8

// AUX request commands. I2C commands have bit 3 clear; the middle-of-
// transaction (MOT) variants have bit 2 set.
const (
	CmdI2CWrite    Command = 0x0
	CmdI2CRead     Command = 0x1
	CmdI2CWriteMOT Command = 0x4
	CmdI2CReadMOT  Command = 0x5
	CmdWrite       Command = 0x8
	CmdRead        Command = 0x9
)

// Fixed I2C device addresses reached over AUX.
const (
	SegmentPointerAddress uint8 = 0x30
	EdidAddress           uint8 = 0x50
)

// MaxBytesPerTransaction is the payload limit of one physical transaction.
const MaxBytesPerTransaction = 16

// IsI2C returns true for I2C-over-AUX commands.
func (c Command) IsI2C() bool {
	return c&0x8 == 0
}

// IsRead returns true for commands that read from the peer.
func (c Command) IsRead() bool {
	return c&0x1 == 1
}

// WithMOT returns the middle-of-transaction variant of an I2C command. Native
// AUX commands are returned unchanged.
func (c Command) WithMOT() Command {
	if !c.IsI2C() {
		return c
	}

	return c | 0x4
}

func (c Command) String() string {
	switch c {
	case CmdI2CWrite:
		return "I2C_WRITE"
	case CmdI2CRead:
		return "I2C_READ"
	case CmdI2CWriteMOT:
		return "I2C_WRITE_MOT"
	case CmdI2CReadMOT:
		return "I2C_READ_MOT"
	case CmdWrite:
		return "WRITE"
	case CmdRead:
		return "READ"
	default:
		return fmt.Sprintf("Command(0x%X)", uint8(c))
	}
}

// A Transaction is one logical AUX request. Requests longer than
// MaxBytesPerTransaction are split by the Transport.
type Transaction struct {
	ID       string
	Cmd      Command
	Address  uint32
	NumBytes int
	Data     []byte
}

// Result describes the outcome of a transaction. It is passed as the hook
// detail at HookPosAuxEnd.
type Result struct {
	BytesTransferred int
	Defers           int
	Timeouts         int
	Err              error
}

// Stats accumulates counters over the life of a Transport.
type Stats struct {
	Transactions uint64
	Defers       uint64
	Timeouts     uint64
	Nacks        uint64
	Failures     uint64
}
