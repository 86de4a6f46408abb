package simulation

import (
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
	"github.com/sarchlab/dplink/sideband"
)

// SinkConfig describes the receiver capabilities of a simulated sink.
type SinkConfig struct {
	DPCDRev          uint8
	MaxLinkRate      dp.LinkRate
	MaxLaneCount     int
	TPS3             bool
	TPS4             bool
	Downspread       bool
	TrainingInterval uint8
	Link             LinkBehavior
	EDID             []byte
}

// DefaultSinkConfig returns a DP1.2 sink that trains at 5.40 Gbps on four
// lanes.
func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		DPCDRev:      0x12,
		MaxLinkRate:  dp.LinkRate540,
		MaxLaneCount: 4,
		TPS3:         true,
		Link:         IdealLink{},
	}
}

// LinkAttempt records a clock recovery start.
type LinkAttempt struct {
	Rate  dp.LinkRate
	Lanes int
}

// Sink is the device directly attached to a TX controller. It answers AUX
// requests from its DPCD and I2C devices, reacts to link training, and,
// once a branch is attached, acts as the root of an MST tree.
type Sink struct {
	DPCD *DPCDSpace

	// DeferAll and TimeoutAll make every request fail.
	DeferAll   bool
	TimeoutAll bool

	link      LinkBehavior
	iteration int
	attempts  []LinkAttempt

	i2c       map[uint8][]byte
	i2cOffset map[uint8]int
	segment   uint8

	root        *Branch
	downEnd     uint32
	down        sideband.Reassembler
	replies     [][]byte
	downErrors  int
	payload     [64]uint8
	actReceived int

	deferNext   int
	timeoutNext int
	nackNext    int
	shortNext   int
	requests    int
}

// NewSink creates a sink with the given capabilities.
func NewSink(cfg SinkConfig) *Sink {
	s := &Sink{
		DPCD:      NewDPCDSpace(),
		link:      cfg.Link,
		i2c:       make(map[uint8][]byte),
		i2cOffset: make(map[uint8]int),
	}

	if s.link == nil {
		s.link = IdealLink{}
	}

	s.DPCD.Set(dp.DpcdRev, cfg.DPCDRev)
	s.DPCD.Set(dp.DpcdMaxLinkRate, byte(cfg.MaxLinkRate))

	lanes := byte(cfg.MaxLaneCount) | dp.EnhancedFrameCap
	if cfg.TPS3 {
		lanes |= dp.TPS3Supported
	}

	s.DPCD.Set(dp.DpcdMaxLaneCount, lanes)

	spread := byte(0)
	if cfg.Downspread {
		spread |= dp.MaxDownspreadMask
	}

	if cfg.TPS4 {
		spread |= dp.TPS4Supported
	}

	s.DPCD.Set(dp.DpcdMaxDownspread, spread)
	s.DPCD.Set(dp.DpcdTrainingAuxRdInterv, cfg.TrainingInterval)
	s.DPCD.Set(dp.DpcdSinkCount, 1)

	if cfg.MaxLinkRate == dp.LinkRate810 {
		s.DPCD.Set(dp.DpcdMaxLinkRate, byte(dp.LinkRate540))
		s.DPCD.Set(dp.DpcdTrainingAuxRdInterv,
			cfg.TrainingInterval|dp.ExtRxCapsPresent)
		s.DPCD.Write(dp.DpcdExtRev, s.DPCD.Slice(dp.DpcdRev, dp.DpcdRxCapsLength))
		s.DPCD.Set(dp.DpcdExtMaxLinkRate, byte(dp.LinkRate810))
	}

	if cfg.EDID != nil {
		s.AddI2CDevice(0x50, cfg.EDID)
	}

	return s
}

// AddI2CDevice makes mem reachable through I2C-over-AUX at dev.
func (s *Sink) AddI2CDevice(dev uint8, mem []byte) {
	s.i2c[dev] = mem
}

// AttachBranch turns the sink into the root branch of an MST tree. The
// branch shares the sink's DPCD.
func (s *Sink) AttachBranch(b *Branch) {
	s.DPCD.Write(dp.DpcdGUID, b.DPCD.Slice(dp.DpcdGUID, sideband.GUIDSize))
	b.DPCD = s.DPCD
	s.root = b

	if s.DPCD.Get(dp.DpcdRev) < 0x12 {
		s.DPCD.Set(dp.DpcdRev, 0x12)
	}

	s.DPCD.Set(dp.DpcdMstmCap, dp.MstCapMask)
}

// Branch returns the attached root branch.
func (s *Sink) Branch() *Branch {
	return s.root
}

// SetLink replaces the training behavior.
func (s *Sink) SetLink(l LinkBehavior) {
	s.link = l
}

// DeferNext defers the next n requests.
func (s *Sink) DeferNext(n int) {
	s.deferNext = n
}

// TimeoutNext leaves the next n requests unanswered.
func (s *Sink) TimeoutNext(n int) {
	s.timeoutNext = n
}

// NackNext rejects the next n requests.
func (s *Sink) NackNext(n int) {
	s.nackNext = n
}

// ShortReadNext answers the next n native reads with one byte missing.
func (s *Sink) ShortReadNext(n int) {
	s.shortNext = n
}

// Requests returns the number of AUX requests received.
func (s *Sink) Requests() int {
	return s.requests
}

// Attempts returns the rate and lane count of every clock recovery start.
func (s *Sink) Attempts() []LinkAttempt {
	return s.attempts
}

// PayloadTable returns the sink's copy of the VC payload table.
func (s *Sink) PayloadTable() [64]uint8 {
	return s.payload
}

// ActReceived returns how many ACT sequences were observed.
func (s *Sink) ActReceived() int {
	return s.actReceived
}

// DownRequestErrors returns how many down-request fragments were dropped.
func (s *Sink) DownRequestErrors() int {
	return s.downErrors
}

// LinkState returns the link state as configured through the DPCD.
func (s *Sink) LinkState() LinkState {
	lane0 := s.DPCD.Get(dp.DpcdTrainingLane0Set)

	return LinkState{
		Rate:         dp.LinkRate(s.DPCD.Get(dp.DpcdLinkBwSet)),
		Lanes:        int(s.DPCD.Get(dp.DpcdLaneCountSet) & dp.MaxLaneCountMask),
		Pattern:      s.DPCD.Get(dp.DpcdTrainingPatternSet) & 0x7,
		VoltageSwing: lane0 & dp.VoltageSwingMask,
		PreEmphasis:  (lane0 >> dp.PreEmphasisShift) & 0x3,
		Iteration:    s.iteration,
	}
}

// ReceiveACT implements ActReceiver.
func (s *Sink) ReceiveACT() {
	s.actReceived++
	s.DPCD.Set(dp.DpcdPayloadTableStatus,
		s.DPCD.Get(dp.DpcdPayloadTableStatus)|dp.PayloadActHandled)
}

// HandleAux implements AuxPeer.
func (s *Sink) HandleAux(req AuxRequest) AuxReply {
	s.requests++

	switch {
	case s.TimeoutAll || s.timeoutNext > 0:
		if s.timeoutNext > 0 {
			s.timeoutNext--
		}

		return AuxReply{NoReply: true}
	case s.DeferAll || s.deferNext > 0:
		if s.deferNext > 0 {
			s.deferNext--
		}

		if req.IsNative() {
			return AuxReply{Code: regio.AuxReplyDefer}
		}

		return AuxReply{Code: regio.AuxReplyI2CDefer}
	case s.nackNext > 0:
		s.nackNext--

		if req.IsNative() {
			return AuxReply{Code: regio.AuxReplyNack}
		}

		return AuxReply{Code: regio.AuxReplyI2CNack}
	}

	if req.IsNative() {
		return s.handleNative(req)
	}

	return s.handleI2C(req)
}

func (s *Sink) handleNative(req AuxRequest) AuxReply {
	if !req.IsRead() {
		s.write(req.Address, req.Data)
		return AuxReply{Code: regio.AuxReplyAck}
	}

	end := req.Address + uint32(req.Length)
	if req.Address <= dp.DpcdStatusLane01 && dp.DpcdStatusLane01 < end {
		s.updateLinkStatus()
	}

	data := s.DPCD.Slice(req.Address, req.Length)
	if s.shortNext > 0 && len(data) > 0 {
		s.shortNext--
		data = data[:len(data)-1]
	}

	return AuxReply{Code: regio.AuxReplyAck, Data: data}
}

func (s *Sink) handleI2C(req AuxRequest) AuxReply {
	dev := uint8(req.Address & 0x7F)
	reply := AuxReply{Code: regio.AuxReplyAck}

	switch {
	case req.Length == 0:
	case dev == segmentPointer && !req.IsRead():
		s.segment = req.Data[0]
	default:
		mem, ok := s.i2c[dev]
		if !ok {
			reply = AuxReply{Code: regio.AuxReplyI2CNack}
			break
		}

		if req.IsRead() {
			reply.Data = s.readI2C(dev, mem, req.Length)
		} else {
			s.writeI2C(dev, mem, req.Data)
		}
	}

	if !req.IsMOT() {
		s.segment = 0
	}

	return reply
}

func (s *Sink) readI2C(dev uint8, mem []byte, n int) []byte {
	base := int(s.segment)*256 + s.i2cOffset[dev]
	out := make([]byte, n)

	for i := range out {
		if base+i < len(mem) {
			out[i] = mem[base+i]
		}
	}

	s.i2cOffset[dev] += n

	return out
}

func (s *Sink) writeI2C(dev uint8, mem []byte, data []byte) {
	s.i2cOffset[dev] = int(data[0])

	base := int(s.segment)*256 + s.i2cOffset[dev]
	for i, b := range data[1:] {
		if base+i < len(mem) {
			mem[base+i] = b
		}
	}

	s.i2cOffset[dev] += len(data) - 1
}

func (s *Sink) write(addr uint32, data []byte) {
	esiCleared := false

	for i, b := range data {
		a := addr + uint32(i)

		switch a {
		case dp.DpcdEsi0:
			s.DPCD.Set(a, s.DPCD.Get(a)&^b)
			esiCleared = true
		case dp.DpcdPayloadTableStatus:
			s.DPCD.Set(a, s.DPCD.Get(a)&^b)
		default:
			s.DPCD.Set(a, b)
		}
	}

	end := addr + uint32(len(data))

	if addr <= dp.DpcdTrainingPatternSet && dp.DpcdTrainingPatternSet < end {
		s.startPattern()
	}

	if addr == dp.DpcdPayloadAllocSet && len(data) >= 3 {
		s.allocate(data[0], data[1], data[2])
	}

	if addr >= dp.DpcdDownReq && addr < dp.DpcdDownReq+sideband.MaxFragmentSize {
		s.downEnd = max(s.downEnd, end)
		s.processDownRequest()
	}

	if esiCleared {
		s.deliverReply()
	}
}

func (s *Sink) startPattern() {
	s.iteration = 0

	st := s.LinkState()
	if st.Pattern == dp.TrainingPattern1 {
		s.attempts = append(s.attempts, LinkAttempt{
			Rate:  st.Rate,
			Lanes: st.Lanes,
		})
	}
}

func (s *Sink) updateLinkStatus() {
	st := s.LinkState()
	if st.Pattern == dp.TrainingPatternOff {
		return
	}

	s.iteration++
	st.Iteration = s.iteration

	cr := min(s.link.ClockRecoveryLanes(st), st.Lanes)
	eq := st.Pattern != dp.TrainingPattern1 && cr >= st.Lanes &&
		s.link.Equalized(st)

	var lanes [4]byte
	for l := 0; l < st.Lanes && l < 4; l++ {
		if l < cr {
			lanes[l] |= dp.LaneCRDone
		}

		if eq {
			lanes[l] |= dp.LaneChannelEqDone | dp.LaneSymbolLocked
		}
	}

	align := byte(0)
	if eq {
		align = dp.InterlaneAlignDone
	}

	vs, pe := s.link.Request(st)
	adj := vs&0x3 | (pe&0x3)<<2

	s.DPCD.Write(dp.DpcdStatusLane01, []byte{
		lanes[0] | lanes[1]<<4,
		lanes[2] | lanes[3]<<4,
		align,
		0,
		adj | adj<<4,
		adj | adj<<4,
	})
}

func (s *Sink) allocate(vcID, start, count uint8) {
	vcID &= 0x7F
	count &= 0x3F

	if vcID == 0 && start == 0 && count == 0x3F {
		s.payload = [64]uint8{}
	} else {
		for i := int(start); i < int(start)+int(count) && i < len(s.payload); i++ {
			s.payload[i] = vcID
		}
	}

	s.DPCD.Set(dp.DpcdPayloadTableStatus,
		s.DPCD.Get(dp.DpcdPayloadTableStatus)|dp.PayloadTableUpdated)
}

func (s *Sink) processDownRequest() {
	if s.root == nil {
		return
	}

	raw := s.DPCD.Slice(dp.DpcdDownReq, sideband.MaxFragmentSize)

	h, err := sideband.DecodeHeader(raw)
	if err != nil {
		return
	}

	need := uint32(h.Len()) + uint32(h.BodyLength)
	if s.downEnd < dp.DpcdDownReq+need {
		return
	}

	s.DPCD.Write(dp.DpcdDownReq, make([]byte, sideband.MaxFragmentSize))
	s.downEnd = 0

	msg, err := sideband.Decode(raw[:need])
	if err != nil {
		s.downErrors++
		return
	}

	done, err := s.down.Add(msg)
	if err != nil {
		s.downErrors++
		s.down.Reset()

		return
	}

	if !done {
		return
	}

	body := s.root.Handle(s.down.Header(), s.down.Body())
	s.down.Reset()

	frags, err := sideband.Fragment(sideband.ReplyHeader(), body)
	if err != nil {
		s.downErrors++
		return
	}

	for _, f := range frags {
		s.replies = append(s.replies, f.Encode())
	}

	s.deliverReply()
}

func (s *Sink) deliverReply() {
	esi := s.DPCD.Get(dp.DpcdEsi0)
	if esi&dp.DownRepMsgRdy != 0 || len(s.replies) == 0 {
		return
	}

	window := make([]byte, sideband.MaxFragmentSize)
	copy(window, s.replies[0])
	s.replies = s.replies[1:]

	s.DPCD.Write(dp.DpcdDownRep, window)
	s.DPCD.Set(dp.DpcdEsi0, esi|dp.DownRepMsgRdy)
}
