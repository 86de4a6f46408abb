package simulation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
	"github.com/sarchlab/dplink/sideband"
)

type namedComp string

func (c namedComp) Name() string {
	return string(c)
}

var _ = Describe("Simulation", func() {
	var (
		simulation *Simulation
	)

	BeforeEach(func() {
		var err error
		simulation, err = MakeBuilder().WithRxController().Build()
		Expect(err).ToNot(HaveOccurred())
	})

	It("should wire the TX controller to the sink", func() {
		Expect(simulation.ID()).ToNot(BeEmpty())
		Expect(simulation.TxController().peer).To(BeIdenticalTo(simulation.Sink()))
		Expect(simulation.TxController().hpd).To(BeTrue())
		Expect(simulation.RxController()).ToNot(BeNil())
		Expect(simulation.Sink().Branch()).To(BeNil())
	})

	It("should register a component", func() {
		Expect(simulation.RegisterComponent(namedComp("Aux"))).To(Succeed())

		c, found := simulation.GetComponentByName("Aux")
		Expect(found).To(BeTrue())
		Expect(c.Name()).To(Equal("Aux"))
		Expect(simulation.Components()).To(HaveLen(1))
	})

	It("should reject a repeated component name", func() {
		Expect(simulation.RegisterComponent(namedComp("Aux"))).To(Succeed())

		err := simulation.RegisterComponent(namedComp("Aux"))

		Expect(err).To(MatchError(dp.ErrInvalidArgument))
	})

	It("should not find unregistered components", func() {
		_, found := simulation.GetComponentByName("Trainer")

		Expect(found).To(BeFalse())
	})

	It("should start unplugged", func() {
		s, err := MakeBuilder().WithUnplugged().Build()

		Expect(err).ToNot(HaveOccurred())
		Expect(s.TxController().hpd).To(BeFalse())
		Expect(s.RxController()).To(BeNil())
	})

	It("should reject invalid sink capabilities", func() {
		cfg := DefaultSinkConfig()
		cfg.MaxLaneCount = 3

		_, err := MakeBuilder().WithSinkConfig(cfg).Build()
		Expect(err).To(MatchError(dp.ErrInvalidArgument))

		cfg = DefaultSinkConfig()
		cfg.MaxLinkRate = 0x07

		_, err = MakeBuilder().WithSinkConfig(cfg).Build()
		Expect(err).To(MatchError(dp.ErrInvalidArgument))
	})

	It("should make the sink an MST branch", func() {
		cfg := DefaultSinkConfig()
		cfg.DPCDRev = 0x11

		s, err := MakeBuilder().
			WithSinkConfig(cfg).
			WithBranch(NewBranch()).
			Build()

		Expect(err).ToNot(HaveOccurred())
		Expect(s.Sink().Branch()).ToNot(BeNil())
		Expect(s.Sink().DPCD.Get(dp.DpcdRev)).To(Equal(byte(0x12)))
		Expect(s.Sink().DPCD.Get(dp.DpcdMstmCap) & dp.MstCapMask).
			ToNot(BeZero())
	})
})

var _ = Describe("Sink", func() {
	var sink *Sink

	BeforeEach(func() {
		cfg := DefaultSinkConfig()
		cfg.EDID = EDID(0x1234, 7, nil)
		sink = NewSink(cfg)
	})

	It("should answer native reads from the DPCD", func() {
		rsp := sink.HandleAux(AuxRequest{
			Cmd:     0x9,
			Address: dp.DpcdRev,
			Length:  1,
		})

		Expect(rsp.Code).To(Equal(uint32(regio.AuxReplyAck)))
		Expect(rsp.Data).To(Equal([]byte{0x12}))
	})

	It("should defer and time out on request", func() {
		sink.DeferNext(1)
		sink.TimeoutNext(1)

		first := sink.HandleAux(AuxRequest{Cmd: 0x9, Address: dp.DpcdRev, Length: 1})
		second := sink.HandleAux(AuxRequest{Cmd: 0x9, Address: dp.DpcdRev, Length: 1})
		third := sink.HandleAux(AuxRequest{Cmd: 0x9, Address: dp.DpcdRev, Length: 1})

		Expect(first.NoReply).To(BeTrue())
		Expect(second.Code).To(Equal(uint32(regio.AuxReplyDefer)))
		Expect(third.Code).To(Equal(uint32(regio.AuxReplyAck)))
		Expect(sink.Requests()).To(Equal(3))
	})
})

var _ = Describe("Branch", func() {
	var root *Branch

	BeforeEach(func() {
		root = NewBranch()
		root.AddSink(1, NewRemoteSink(nil))
		root.AddBranch(2, NewBranch())
		root.AddSink(3, NewRemoteSink(nil)).Unplugged = true
	})

	It("should answer LINK_ADDRESS", func() {
		h, body := sideband.LinkAddressRequest(sideband.RootTarget)

		reply := root.Handle(h, body)

		Expect(reply[0]).To(Equal(byte(sideband.LinkAddress)))
		Expect(root.Requests()).To(Equal([]sideband.RequestID{sideband.LinkAddress}))
	})

	It("should forward requests to child branches", func() {
		h, body := sideband.LinkAddressRequest(sideband.RootTarget.Child(2))

		reply := root.Handle(h, body)

		Expect(reply[0]).To(Equal(byte(sideband.LinkAddress)))
		Expect(root.Requests()).To(BeEmpty())
		Expect(root.Port(2).Branch.Requests()).To(HaveLen(1))
	})

	It("should NACK requests routed through a sink port", func() {
		h, body := sideband.LinkAddressRequest(
			sideband.RootTarget.Child(1).Child(1))

		reply := root.Handle(h, body)

		Expect(reply[0] & sideband.ReplyNack).ToNot(BeZero())
	})
})
