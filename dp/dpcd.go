package dp

// DPCD addresses of the receiver capability field.
const (
	DpcdRev                 uint32 = 0x00000
	DpcdMaxLinkRate         uint32 = 0x00001
	DpcdMaxLaneCount        uint32 = 0x00002
	DpcdMaxDownspread       uint32 = 0x00003
	DpcdTrainingAuxRdInterv uint32 = 0x0000E
	DpcdMstmCap             uint32 = 0x00021
	DpcdGUID                uint32 = 0x00030
	DpcdRxCapsLength               = 16
)

// DPCD addresses of the link configuration field.
const (
	DpcdLinkBwSet          uint32 = 0x00100
	DpcdLaneCountSet       uint32 = 0x00101
	DpcdTrainingPatternSet uint32 = 0x00102
	DpcdTrainingLane0Set   uint32 = 0x00103
	DpcdDownspreadCtrl     uint32 = 0x00107
	DpcdMstmCtrl           uint32 = 0x00111
	DpcdBranchDeviceCtrl   uint32 = 0x001A1
	DpcdPayloadAllocSet    uint32 = 0x001C0
)

// DPCD addresses of the link and sink status field.
const (
	DpcdSinkCount           uint32 = 0x00200
	DpcdStatusLane01        uint32 = 0x00202
	DpcdStatusLane23        uint32 = 0x00203
	DpcdLaneAlignStatus     uint32 = 0x00204
	DpcdAdjReqLane01        uint32 = 0x00206
	DpcdAdjReqLane23        uint32 = 0x00207
	DpcdPayloadTableStatus  uint32 = 0x002C0
	DpcdLinkStatusLength           = 6
	DpcdDownReq             uint32 = 0x01000
	DpcdDownRep             uint32 = 0x01400
	DpcdEsi0                uint32 = 0x02003
	DpcdExtRev              uint32 = 0x02200
	DpcdExtMaxLinkRate      uint32 = 0x02201
)

// Bit fields of the receiver capability field.
const (
	MaxLaneCountMask  uint8 = 0x1F
	TPS3Supported     uint8 = 0x40
	EnhancedFrameCap  uint8 = 0x80
	MaxDownspreadMask uint8 = 0x01
	TPS4Supported     uint8 = 0x80
	ExtRxCapsPresent  uint8 = 0x80
	TrainingAuxRdMask uint8 = 0x7F
	MstCapMask        uint8 = 0x01
)

// Bit fields of the link configuration field.
const (
	LaneCountEnhancedFrameEn  uint8 = 0x80
	LaneCountPostLtAdjGranted uint8 = 0x20
	TrainingPatternOff        uint8 = 0x00
	TrainingPattern1          uint8 = 0x01
	TrainingPattern2          uint8 = 0x02
	TrainingPattern3          uint8 = 0x03
	TrainingPattern4          uint8 = 0x07
	ScramblingDisable         uint8 = 0x20
	VoltageSwingMask          uint8 = 0x03
	MaxSwingReached           uint8 = 0x04
	PreEmphasisShift                = 3
	MaxPreEmphasisReached     uint8 = 0x20
	DownspreadCtrlSpreadAmp   uint8 = 0x10
	MstEn                     uint8 = 0x01
	UpReqEn                   uint8 = 0x02
	UpIsSrc                   uint8 = 0x04
)

// Bit fields of the link status field. Lane status bits for odd lanes sit in
// the upper nibble of the same byte.
const (
	LaneCRDone          uint8 = 0x01
	LaneChannelEqDone   uint8 = 0x02
	LaneSymbolLocked    uint8 = 0x04
	InterlaneAlignDone  uint8 = 0x01
	PayloadTableUpdated uint8 = 0x01
	PayloadActHandled   uint8 = 0x02
	DownRepMsgRdy       uint8 = 0x10
)

// Maximum drive levels.
const (
	MaxVoltageSwing = 3
	MaxPreEmphasis  = 3
)
