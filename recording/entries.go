package recording

// Table names used by the recording hook.
const (
	AuxTable          = "aux_transaction"
	TrainingTable     = "training_state"
	SidebandTable     = "sideband_fragment"
	NodeTable         = "topology_node"
	PayloadAllocTable = "payload_allocation"
	ExecTable         = "exec_info"
)

// AuxEntry is a row of the AUX transaction table.
type AuxEntry struct {
	Seq         int64
	ID          string
	Component   string
	Command     string
	Address     uint32
	NumBytes    int64
	Transferred int64
	Defers      int64
	Timeouts    int64
	Error       string
}

// TrainingEntry is a row of the training state table. Run groups the states
// of one training attempt.
type TrainingEntry struct {
	Seq          int64
	Run          string
	Component    string
	State        string
	LinkRate     string
	LaneCount    int64
	VoltageSwing uint8
	PreEmphasis  uint8
	Final        bool
	Error        string
}

// SidebandEntry is a row of the sideband fragment table.
type SidebandEntry struct {
	Seq            int64
	Component      string
	Direction      string
	LinkCountTotal uint8
	Broadcast      bool
	Path           bool
	BodyLength     uint8
	Start          bool
	End            bool
	SequenceNum    uint8
	RequestID      string
}

// NodeEntry is a row of the topology node table.
type NodeEntry struct {
	Seq        int64
	Component  string
	Kind       string
	Target     string
	GUID       string
	DPCDRev    uint8
	MsgCapable bool
}

// PayloadEntry is a row of the payload allocation table.
type PayloadEntry struct {
	Seq       int64
	Component string
	VcID      uint8
	Start     int64
	Count     int64
}

// ExecEntry is a row of the execution information table.
type ExecEntry struct {
	Property string
	Value    string
}
