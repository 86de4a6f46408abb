package regio

// TX core link configuration registers.
const (
	TxLinkBwSet           uint32 = 0x000
	TxLaneCountSet        uint32 = 0x004
	TxEnhancedFrameEn     uint32 = 0x008
	TxTrainingPatternSet  uint32 = 0x00C
	TxScramblingDisable   uint32 = 0x014
	TxDownspreadCtrl      uint32 = 0x018
	TxSoftReset           uint32 = 0x01C
	TxForceScramblerReset uint32 = 0x0C0
	TxEnable              uint32 = 0x080
	TxEnableMainStream    uint32 = 0x084
	TxMstConfig           uint32 = 0x0D0
	TxPhyVoltageDiffLane0 uint32 = 0x220
	TxPhyClockSelect      uint32 = 0x234
	TxPhyPostcursorLane0  uint32 = 0x24C
	TxPhyStatus           uint32 = 0x280
	TxVcPayloadBuffer     uint32 = 0x800
)

// TX core AUX channel registers.
const (
	TxAuxCmd            uint32 = 0x100
	TxAuxWriteFifo      uint32 = 0x104
	TxAuxAddress        uint32 = 0x108
	TxInterruptSigState uint32 = 0x130
	TxAuxReplyData      uint32 = 0x134
	TxAuxReplyCode      uint32 = 0x138
	TxAuxReplyCount     uint32 = 0x13C
	TxReplyDataCount    uint32 = 0x148
	TxReplyStatus       uint32 = 0x14C
)

// Bit fields of the TX AUX registers.
const (
	AuxCmdShift           = 8
	AuxCmdNumBytesMask    = 0xF
	AuxCmdAddressOnly     = 0x1000
	SigStateHpd           = 0x1
	SigStateRequest       = 0x2
	SigStateReply         = 0x4
	SigStateReplyTimeout  = 0x8
	ReplyStatusReceived   = 0x1
	ReplyStatusInProgress = 0x2
	RequestInProgress     = 0x4
	ReplyStatusError      = 0x8
)

// AUX reply codes as reported in TxAuxReplyCode.
const (
	AuxReplyAck      = 0x0
	AuxReplyNack     = 0x1
	AuxReplyDefer    = 0x2
	AuxReplyI2CNack  = 0x4
	AuxReplyI2CDefer = 0x8
)

// Other TX bit fields.
const (
	MstConfigEnable     = 0x1
	MstConfigActTrigger = 0x3
	PhyClock162         = 0x1
	PhyClock270         = 0x3
	PhyClock540         = 0x5
	PhyClock810         = 0x7
)

// PHY status bits.
const (
	PhyStatusLane0ResetDone  = 0x01
	PhyStatusLane1ResetDone  = 0x02
	PhyStatusLane23ResetDone = 0x0C
	PhyStatusPllLane01Lock   = 0x10
	PhyStatusPllLane23Lock   = 0x20
)

// PhyLanesReady returns the PHY status mask that reports the first n lanes
// as ready.
func PhyLanesReady(n int) uint32 {
	switch {
	case n > 2:
		return PhyStatusLane23ResetDone | PhyStatusPllLane23Lock
	case n == 2:
		return PhyStatusLane0ResetDone | PhyStatusPllLane01Lock |
			PhyStatusLane1ResetDone
	default:
		return PhyStatusLane0ResetDone | PhyStatusPllLane01Lock
	}
}
