package topology

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/dplink/auxch"
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/simulation"
)

type eventRecorder struct {
	dp.NopEventSink

	nodes, sinks int
	discoverErr  error
	discovered   int
	payloads     []PayloadAllocation
	handled      []sideband.RequestID
	nacked       []bool
	trainingLost int
	unplugged    int
}

func (r *eventRecorder) TopologyDiscovered(nodes, sinks int, err error) {
	r.nodes, r.sinks, r.discoverErr = nodes, sinks, err
	r.discovered++
}

func (r *eventRecorder) PayloadTableChanged(vcID uint8, start, count int) {
	r.payloads = append(r.payloads,
		PayloadAllocation{VcID: vcID, Start: start, Count: count})
}

func (r *eventRecorder) DownRequestHandled(msgType uint8, nacked bool) {
	r.handled = append(r.handled, sideband.RequestID(msgType))
	r.nacked = append(r.nacked, nacked)
}

func (r *eventRecorder) TrainingLost() {
	r.trainingLost++
}

func (r *eventRecorder) Unplugged() {
	r.unplugged++
}

type txEnv struct {
	clock   *simulation.Clock
	sink    *simulation.Sink
	ctrl    *simulation.TxController
	events  *eventRecorder
	manager *Manager
}

func newTxEnv(root *simulation.Branch) txEnv {
	env := txEnv{
		clock:  simulation.NewClock(),
		sink:   simulation.NewSink(simulation.DefaultSinkConfig()),
		events: &eventRecorder{},
	}

	if root != nil {
		env.sink.AttachBranch(root)
	}

	env.ctrl = simulation.NewTxController(env.sink)

	transport, err := auxch.MakeBuilder().
		WithBus(env.ctrl).
		WithTimer(env.clock).
		Build("Aux")
	Expect(err).NotTo(HaveOccurred())

	messenger, err := sideband.MakeTxBuilder().
		WithAuxChannel(transport).
		WithTimer(env.clock).
		Build("Sideband")
	Expect(err).NotTo(HaveOccurred())

	env.manager, err = MakeBuilder().
		WithAuxChannel(transport).
		WithMessenger(messenger).
		WithBus(env.ctrl).
		WithTimer(env.clock).
		WithEventSink(env.events).
		Build("Topology")
	Expect(err).NotTo(HaveOccurred())

	return env
}

var _ = Describe("Manager", func() {
	var (
		mockCtrl  *gomock.Controller
		channel   *MockAuxChannel
		messenger *MockMessenger
		clock     *simulation.Clock
		bus       *simulation.TxController
		m         *Manager
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		channel = NewMockAuxChannel(mockCtrl)
		messenger = NewMockMessenger(mockCtrl)
		clock = simulation.NewClock()
		bus = simulation.NewTxController(nil)

		var err error
		m, err = MakeBuilder().
			WithAuxChannel(channel).
			WithMessenger(messenger).
			WithBus(bus).
			WithTimer(clock).
			Build("Topology")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should need its collaborators", func() {
		_, err := MakeBuilder().WithAuxChannel(channel).Build("Topology")

		Expect(err).To(MatchError(dp.ErrInvalidArgument))
	})

	It("should reject a payload range past the table before touching hardware", func() {
		err := m.AllocateVcID(1, 5, 60)

		Expect(err).To(MatchError(dp.ErrBufferTooSmall))
		Expect(bus.Reg(regio.TxVcPayloadBuffer + 4*60)).To(BeZero())
	})

	It("should reject slot 0 for a stream", func() {
		err := m.AllocateVcID(1, 4, 0)

		Expect(err).To(MatchError(dp.ErrBufferTooSmall))
	})

	It("should time out when the sink never reports the table update", func() {
		channel.EXPECT().
			Write(dp.DpcdPayloadTableStatus, []byte{dp.PayloadTableUpdated})
		channel.EXPECT().
			Write(dp.DpcdPayloadAllocSet, []byte{2, 5, 3})
		channel.EXPECT().
			Read(dp.DpcdPayloadTableStatus, gomock.Any()).
			Times(DefaultStatusPollLimit)

		err := m.AllocateVcID(2, 3, 5)

		Expect(err).To(MatchError(dp.ErrTimeout))
		Expect(bus.Reg(regio.TxVcPayloadBuffer + 4*5)).To(Equal(uint32(2)))
		Expect(bus.Reg(regio.TxVcPayloadBuffer + 4*7)).To(Equal(uint32(2)))
		Expect(bus.Reg(regio.TxVcPayloadBuffer + 4*8)).To(BeZero())
	})

	It("should time out when ACT is never handled", func() {
		channel.EXPECT().
			Read(dp.DpcdPayloadTableStatus, gomock.Any()).
			Times(DefaultStatusPollLimit)

		err := m.SendACT()

		Expect(err).To(MatchError(dp.ErrTimeout))
		Expect(bus.Reg(regio.TxMstConfig)).
			To(Equal(uint32(regio.MstConfigActTrigger)))
		Expect(clock.Now()).
			To(Equal(uint64(actDelayUs + DefaultStatusPollLimit*statusPollDelayUs)))
	})

	It("should refuse MST on a DP1.1 device", func() {
		channel.EXPECT().Read(dp.DpcdRev, gomock.Any()).
			DoAndReturn(func(_ uint32, buf []byte) error {
				buf[0] = 0x11
				return nil
			})

		err := m.EnableMst()

		Expect(err).To(MatchError(dp.ErrProtocolFailure))
		Expect(m.MstEnabled()).To(BeFalse())
	})

	It("should validate stream IDs", func() {
		Expect(m.EnableStream(0, true)).To(MatchError(dp.ErrInvalidArgument))
		Expect(m.EnableStream(NumStreams+1, true)).
			To(MatchError(dp.ErrInvalidArgument))
		Expect(m.SetStreamSink(1, 0)).To(MatchError(dp.ErrInvalidArgument))
	})
})

var _ = Describe("Manager with a simulated sink", func() {
	var (
		root *simulation.Branch
		env  txEnv
	)

	BeforeEach(func() {
		root = simulation.NewBranch()
		root.SetGUID(sideband.GUID{0x10})
		root.AddSink(1, simulation.NewRemoteSink(nil))
		root.AddSink(2, simulation.NewRemoteSink(nil))
		env = newTxEnv(root)
	})

	It("should switch the link to MST and back", func() {
		capable, err := env.manager.MstCapable()
		Expect(err).NotTo(HaveOccurred())
		Expect(capable).To(BeTrue())

		Expect(env.manager.EnableMst()).To(Succeed())
		Expect(env.sink.DPCD.Get(dp.DpcdMstmCtrl)).
			To(Equal(dp.UpIsSrc | dp.UpReqEn | dp.MstEn))
		Expect(env.ctrl.Reg(regio.TxMstConfig)).
			To(Equal(uint32(regio.MstConfigEnable)))
		Expect(env.manager.MstEnabled()).To(BeTrue())

		Expect(env.manager.DisableMst()).To(Succeed())
		Expect(env.sink.DPCD.Get(dp.DpcdMstmCtrl)).To(BeZero())
		Expect(env.ctrl.Reg(regio.TxMstConfig)).To(BeZero())
	})

	It("should program both payload tables", func() {
		var hooked []PayloadAllocation
		env.manager.AcceptHook(dp.HookFunc(func(ctx dp.HookCtx) {
			if ctx.Pos == dp.HookPosPayloadAllocated {
				hooked = append(hooked, ctx.Item.(PayloadAllocation))
			}
		}))

		Expect(env.manager.AllocateVcID(1, 4, 1)).To(Succeed())

		want := PayloadAllocation{VcID: 1, Start: 1, Count: 4}
		table := env.sink.PayloadTable()
		Expect(table[1:6]).To(Equal([]uint8{1, 1, 1, 1, 0}))
		Expect(env.ctrl.Reg(regio.TxVcPayloadBuffer + 4*4)).To(Equal(uint32(1)))
		Expect(env.manager.PayloadTable().Slots(1)).To(Equal(4))
		Expect(hooked).To(Equal([]PayloadAllocation{want}))
		Expect(env.events.payloads).To(Equal([]PayloadAllocation{want}))
	})

	It("should send ACT and clear the acknowledgement", func() {
		Expect(env.manager.SendACT()).To(Succeed())

		Expect(env.sink.ActReceived()).To(Equal(1))
		Expect(env.sink.DPCD.Get(dp.DpcdPayloadTableStatus) &
			dp.PayloadActHandled).To(BeZero())
	})

	It("should clear the table and restore bandwidth everywhere", func() {
		Expect(env.manager.Discover()).To(Succeed())
		Expect(env.manager.EnableStream(1, true)).To(Succeed())
		Expect(env.manager.SetStreamSink(1, 0)).To(Succeed())
		Expect(env.manager.SetStreamPbn(1, 100, dp.LinkRate270, 4)).To(Succeed())
		Expect(env.manager.AllocatePayloadStreams()).To(Succeed())
		Expect(root.Port(1).AvailablePBN).To(BeZero())

		Expect(env.manager.ClearPayloadTable()).To(Succeed())

		Expect(env.sink.PayloadTable()).To(Equal([64]uint8{}))
		Expect(env.manager.PayloadTable().Free()).To(Equal(63))
		Expect(root.Port(1).AvailablePBN).
			To(Equal(uint16(simulation.DefaultFullPBN)))

		s, err := env.manager.Stream(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Allocated()).To(BeFalse())
	})

	It("should lay streams out back to back", func() {
		Expect(env.manager.Discover()).To(Succeed())

		Expect(env.manager.EnableStream(1, true)).To(Succeed())
		Expect(env.manager.SetStreamSink(1, 0)).To(Succeed())
		Expect(env.manager.SetStreamPbn(1, 1000, dp.LinkRate540, 4)).To(Succeed())

		Expect(env.manager.EnableStream(2, true)).To(Succeed())
		Expect(env.manager.SetStreamSink(2, 1)).To(Succeed())
		Expect(env.manager.SetStreamPbn(2, 500, dp.LinkRate540, 4)).To(Succeed())

		Expect(env.manager.AllocatePayloadStreams()).To(Succeed())

		table := env.sink.PayloadTable()
		Expect(table[0]).To(BeZero())
		Expect(table[1]).To(Equal(uint8(1)))
		Expect(table[25]).To(Equal(uint8(1)))
		Expect(table[26]).To(Equal(uint8(2)))
		Expect(table[38]).To(Equal(uint8(2)))
		Expect(table[39]).To(BeZero())
		Expect(env.sink.ActReceived()).To(Equal(1))
		Expect(root.Port(1).AvailablePBN).To(BeZero())
		Expect(root.Port(2).AvailablePBN).To(BeZero())

		s, err := env.manager.Stream(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Timeslots).To(Equal(13))
		Expect(s.Allocated()).To(BeTrue())
	})
})

var _ = DescribeTable("TimeslotsForPbn",
	func(pbn uint16, rate dp.LinkRate, lanes, want int) {
		slots, err := TimeslotsForPbn(pbn, rate, lanes)

		Expect(err).NotTo(HaveOccurred())
		Expect(slots).To(Equal(want))
	},
	Entry("1.62 Gbps x1", uint16(30), dp.LinkRate162, 1, 10),
	Entry("2.70 Gbps x2 rounds up", uint16(101), dp.LinkRate270, 2, 11),
	Entry("5.40 Gbps x4", uint16(1000), dp.LinkRate540, 4, 25),
	Entry("8.10 Gbps x4", uint16(2560), dp.LinkRate810, 4, 43),
	Entry("zero", uint16(0), dp.LinkRate540, 4, 0),
)
