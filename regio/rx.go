package regio

// RX core registers used by the sideband responder.
const (
	RxLinkEnable       uint32 = 0x000
	RxInterruptMask    uint32 = 0x014
	RxHpdInterrupt     uint32 = 0x02C
	RxInterruptCause   uint32 = 0x040
	RxMstAlloc         uint32 = 0x06C
	RxDeviceServiceIrq uint32 = 0x090
	RxMstCap           uint32 = 0x0D0
	RxSinkCount        uint32 = 0x0D4
	RxDpcdLinkBwSet    uint32 = 0x400
	RxDpcdLaneCountSet uint32 = 0x404
	RxVcPayloadTable   uint32 = 0x800
	RxDownReq          uint32 = 0xA00
	RxDownRep          uint32 = 0xB00
)

// Bit fields of the RX registers.
const (
	RxHpdInterruptAssert   = 0x1
	RxIrqNewDownReply      = 0x10
	RxMstCapEnable         = 0x1
	RxMstCapVcpUpdate      = 0x10
	RxMstAllocVcIDMask     = 0x00003F
	RxMstAllocStartTsMask  = 0x003F00
	RxMstAllocStartTsShift = 8
	RxMstAllocCountTsMask  = 0x3F0000
	RxMstAllocCountTsShift = 16
	RxCauseTrainingLost    = 0x00000010
	RxCauseDownRequest     = 0x00002000
	RxCauseTrainingDone    = 0x00004000
	RxCauseBandwidthChange = 0x00008000
	RxCausePayloadAlloc    = 0x10000000
	RxCauseActReceived     = 0x20000000
	RxCauseUnplug          = 0x80000000
)
