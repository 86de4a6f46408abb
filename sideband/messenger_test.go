package sideband_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dplink/auxch"
	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/simulation"
)

var _ = Describe("TxMessenger over AUX", func() {
	var (
		clock *simulation.Clock
		sink  *simulation.Sink
		root  *simulation.Branch
		child *simulation.Branch
		leaf  *simulation.RemoteSink
		tx    *sideband.TxMessenger
	)

	BeforeEach(func() {
		clock = simulation.NewClock()
		sink = simulation.NewSink(simulation.DefaultSinkConfig())

		root = simulation.NewBranch()
		root.SetGUID(sideband.GUID{0x10, 0x01})
		leaf = simulation.NewRemoteSink(nil)
		leaf.DPCD.Write(0x000, []byte{0x12, 0x14, 0x84})
		root.AddSink(1, leaf)

		child = simulation.NewBranch()
		child.SetGUID(sideband.GUID{0x20, 0x02})
		child.AddSink(1, simulation.NewRemoteSink(nil))
		root.AddBranch(2, child)

		sink.AttachBranch(root)

		transport, err := auxch.MakeBuilder().
			WithBus(simulation.NewTxController(sink)).
			WithTimer(clock).
			Build("Aux")
		Expect(err).NotTo(HaveOccurred())

		tx, err = sideband.MakeTxBuilder().
			WithAuxChannel(transport).
			WithTimer(clock).
			Build("Tx")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should list the ports of the root branch", func() {
		h, body := sideband.LinkAddressRequest(sideband.RootTarget)

		reply, err := tx.Transact(h, body)
		Expect(err).NotTo(HaveOccurred())

		r, err := sideband.ParseLinkAddressReply(reply)
		Expect(err).NotTo(HaveOccurred())

		Expect(r.GUID).To(Equal(sideband.GUID{0x10, 0x01}))
		Expect(r.Ports).To(HaveLen(3))
		Expect(r.Ports[0].Input).To(BeTrue())
		Expect(r.Ports[1].PeerDeviceType).To(Equal(sideband.PeerSstSink))
		Expect(r.Ports[1].Plugged).To(BeTrue())
		Expect(r.Ports[2].PeerDeviceType).To(Equal(sideband.PeerBranch))
		Expect(r.Ports[2].MsgCapable).To(BeTrue())
		Expect(root.Requests()).To(Equal(
			[]sideband.RequestID{sideband.LinkAddress}))
	})

	It("should reach a branch behind the root", func() {
		h, body := sideband.LinkAddressRequest(sideband.RootTarget.Child(2))

		reply, err := tx.Transact(h, body)
		Expect(err).NotTo(HaveOccurred())

		r, err := sideband.ParseLinkAddressReply(reply)
		Expect(err).NotTo(HaveOccurred())

		Expect(r.GUID).To(Equal(sideband.GUID{0x20, 0x02}))
		Expect(root.Requests()).To(BeEmpty())
		Expect(child.Requests()).To(Equal(
			[]sideband.RequestID{sideband.LinkAddress}))
	})

	It("should collect a reply spread over several fragments", func() {
		var replies int
		tx.AcceptHook(dp.HookFunc(func(ctx dp.HookCtx) {
			if ctx.Pos == dp.HookPosSidebandReceive {
				replies++
			}
		}))

		h, body, err := sideband.RemoteDpcdReadRequest(
			sideband.RootTarget.Child(1), 0x000, 100)
		Expect(err).NotTo(HaveOccurred())

		reply, err := tx.Transact(h, body)
		Expect(err).NotTo(HaveOccurred())

		data, err := sideband.ParseReadReply(reply, 100)
		Expect(err).NotTo(HaveOccurred())

		Expect(data[:3]).To(Equal([]byte{0x12, 0x14, 0x84}))
		Expect(replies).To(Equal(3))
		Expect(sink.DownRequestErrors()).To(BeZero())
	})

	It("should write remote DPCD", func() {
		h, body, err := sideband.RemoteDpcdWriteRequest(
			sideband.RootTarget.Child(1), 0x600, []byte{0x01})
		Expect(err).NotTo(HaveOccurred())

		_, err = tx.Transact(h, body)

		Expect(err).NotTo(HaveOccurred())
		Expect(leaf.DPCD.Get(0x600)).To(Equal(uint8(0x01)))
	})

	It("should report a NACK for a missing port", func() {
		h, body, err := sideband.RemoteDpcdReadRequest(
			sideband.RootTarget.Child(7), 0x000, 1)
		Expect(err).NotTo(HaveOccurred())

		reply, err := tx.Transact(h, body)

		Expect(err).To(MatchError(dp.ErrNacked))
		Expect(sideband.IsNack(reply)).To(BeTrue())
	})
})

var _ = Describe("RxMessenger", func() {
	var (
		clock *simulation.Clock
		ctrl  *simulation.RxController
		rx    *sideband.RxMessenger
	)

	inject := func(h sideband.Header, body []byte) {
		frags, err := sideband.Fragment(h, body)
		Expect(err).NotTo(HaveOccurred())

		for i, f := range frags {
			ctrl.InjectDownRequest(f.Encode())

			req, done, err := rx.ReceiveRequest()
			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(Equal(i == len(frags)-1))

			if done {
				Expect(req.Body).To(Equal(body))
			}
		}
	}

	BeforeEach(func() {
		clock = simulation.NewClock()
		ctrl = simulation.NewRxController()

		var err error
		rx, err = sideband.MakeRxBuilder().
			WithBus(ctrl).
			WithTimer(clock).
			WithReplyPollLimit(5).
			Build("Rx")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should need a bus and a timer", func() {
		_, err := sideband.MakeRxBuilder().Build("Rx")

		Expect(err).To(MatchError(dp.ErrInvalidArgument))
	})

	It("should receive a request in one fragment", func() {
		h, body := sideband.LinkAddressRequest(sideband.RootTarget)
		frags, err := sideband.Fragment(h, body)
		Expect(err).NotTo(HaveOccurred())

		ctrl.InjectDownRequest(frags[0].Encode())
		req, done, err := rx.ReceiveRequest()

		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeTrue())
		Expect(req.ID()).To(Equal(sideband.LinkAddress))
		Expect(req.Header.LinkCountTotal).To(Equal(uint8(1)))
	})

	It("should reassemble a request in several fragments", func() {
		h, body, err := sideband.RemoteDpcdWriteRequest(
			sideband.RootTarget.Child(1), 0x100, make([]byte, 90))
		Expect(err).NotTo(HaveOccurred())

		inject(h, body)
	})

	It("should drop a partial request after a corrupted fragment", func() {
		h, body, err := sideband.RemoteDpcdWriteRequest(
			sideband.RootTarget.Child(1), 0x100, make([]byte, 90))
		Expect(err).NotTo(HaveOccurred())

		frags, err := sideband.Fragment(h, body)
		Expect(err).NotTo(HaveOccurred())

		ctrl.InjectDownRequest(frags[0].Encode())
		_, _, err = rx.ReceiveRequest()
		Expect(err).NotTo(HaveOccurred())

		raw := frags[1].Encode()
		raw[len(raw)-1] ^= 0xFF
		ctrl.InjectDownRequest(raw)
		_, _, err = rx.ReceiveRequest()
		Expect(err).To(MatchError(dp.ErrCrcMismatch))

		ctrl.InjectDownRequest(frags[2].Encode())
		_, _, err = rx.ReceiveRequest()
		Expect(err).To(MatchError(dp.ErrProtocolFailure))

		inject(h, body)
	})

	It("should send a reply in fragments", func() {
		body := sideband.ReadReply(sideband.RemoteDpcdRead, 1, make([]byte, 60))

		err := rx.SendReply(sideband.ReplyHeader(), body)
		Expect(err).NotTo(HaveOccurred())

		replies := ctrl.Replies()
		Expect(replies).To(HaveLen(2))

		r := sideband.Reassembler{}
		for _, raw := range replies {
			frag, err := sideband.Decode(raw)
			Expect(err).NotTo(HaveOccurred())

			_, err = r.Add(frag)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(r.Body()).To(Equal(body))
	})

	It("should time out if the upstream device never takes the reply", func() {
		ctrl.HoldReplies(true)

		err := rx.SendReply(sideband.ReplyHeader(), []byte{0x01})

		Expect(err).To(MatchError(dp.ErrTimeout))
		Expect(clock.Now()).To(Equal(uint64(5000)))
		Expect(ctrl.Replies()).To(BeEmpty())
	})
})
