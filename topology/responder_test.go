package topology

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/simulation"
)

var _ = Describe("Responder", func() {
	var (
		ctrl   *simulation.RxController
		events *eventRecorder
		r      *Responder
		seen   int
		guid   = sideband.GUID{0xCA, 0xFE}
	)

	send := func(h sideband.Header, body []byte) (sideband.Header, []byte) {
		frags, err := sideband.Fragment(h, body)
		Expect(err).NotTo(HaveOccurred())

		for _, f := range frags {
			ctrl.InjectDownRequest(f.Encode())
			Expect(r.ServiceInterrupts()).To(Succeed())
		}

		replies := ctrl.Replies()[seen:]
		seen = len(ctrl.Replies())

		ra := sideband.Reassembler{}
		for _, raw := range replies {
			frag, err := sideband.Decode(raw)
			Expect(err).NotTo(HaveOccurred())

			_, err = ra.Add(frag)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(ra.Done()).To(BeTrue())

		return ra.Header(), ra.Body()
	}

	port := func(num uint8) sideband.Target {
		return sideband.RootTarget.Child(num)
	}

	BeforeEach(func() {
		seen = 0
		ctrl = simulation.NewRxController()
		events = &eventRecorder{}

		rx, err := sideband.MakeRxBuilder().
			WithBus(ctrl).
			WithTimer(simulation.NewClock()).
			Build("Rx")
		Expect(err).NotTo(HaveOccurred())

		r, err = MakeResponderBuilder().
			WithMessenger(rx).
			WithBus(ctrl).
			WithEventSink(events).
			WithGUID(guid).
			Build("Responder")
		Expect(err).NotTo(HaveOccurred())

		Expect(r.SetPortDetails(0, sideband.PortInfo{
			Input:          true,
			PeerDeviceType: sideband.PeerSource,
			MsgCapable:     true,
			Plugged:        true,
		})).To(Succeed())
		Expect(r.ExposePort(0, true)).To(Succeed())

		for _, num := range []uint8{1, 2} {
			Expect(r.SetPortDetails(num, sideband.PortInfo{
				PeerDeviceType: sideband.PeerSstSink,
				Plugged:        true,
				DPCDRev:        0x12,
			})).To(Succeed())
			Expect(r.SetFullPbn(num, 2560)).To(Succeed())
		}

		Expect(r.ExposePort(1, true)).To(Succeed())
	})

	It("should need a messenger and a bus", func() {
		_, err := MakeResponderBuilder().Build("Responder")

		Expect(err).To(MatchError(dp.ErrInvalidArgument))
	})

	It("should report exposed ports in LINK_ADDRESS", func() {
		Expect(ctrl.Reg(regio.RxSinkCount)).To(Equal(uint32(2)))

		_, body := send(sideband.LinkAddressRequest(sideband.RootTarget))

		reply, err := sideband.ParseLinkAddressReply(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.GUID).To(Equal(guid))
		Expect(reply.Ports).To(HaveLen(2))
		Expect(reply.Ports[0].Input).To(BeTrue())
		Expect(reply.Ports[1].PortNumber).To(Equal(uint8(1)))
		Expect(reply.Ports[1].PeerDeviceType).To(Equal(sideband.PeerSstSink))
		Expect(events.handled).To(Equal([]sideband.RequestID{sideband.LinkAddress}))
		Expect(events.nacked).To(Equal([]bool{false}))
	})

	It("should hide a port again", func() {
		Expect(r.ExposePort(1, false)).To(Succeed())

		Expect(ctrl.Reg(regio.RxSinkCount)).To(Equal(uint32(1)))
		Expect(r.NumExposedPorts()).To(Equal(1))
	})

	It("should serve remote DPCD reads from the port's window", func() {
		Expect(r.SetDpcdMap(1, 0x100, []byte{1, 2, 3})).To(Succeed())

		h, req, err := sideband.RemoteDpcdReadRequest(port(1), 0xFE, 6)
		Expect(err).NotTo(HaveOccurred())
		_, body := send(h, req)

		data, err := sideband.ParseReadReply(body, 6)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{0, 0, 1, 2, 3, 0}))
	})

	It("should NACK a remote DPCD read of an unmapped port", func() {
		h, req, err := sideband.RemoteDpcdReadRequest(port(1), 0, 1)
		Expect(err).NotTo(HaveOccurred())

		_, body := send(h, req)

		Expect(sideband.IsNack(body)).To(BeTrue())
		Expect(events.nacked).To(Equal([]bool{true}))
	})

	It("should NACK a remote DPCD read too long for one reply", func() {
		Expect(r.SetDpcdMap(1, 0, make([]byte, 512))).To(Succeed())

		h, req, err := sideband.RemoteDpcdReadRequest(port(1), 0,
			sideband.MaxReadReplyData+1)
		Expect(err).NotTo(HaveOccurred())
		_, body := send(h, req)

		Expect(sideband.IsNack(body)).To(BeTrue())

		h, req, err = sideband.RemoteDpcdReadRequest(port(1), 0,
			sideband.MaxReadReplyData)
		Expect(err).NotTo(HaveOccurred())
		_, body = send(h, req)

		data, err := sideband.ParseReadReply(body, sideband.MaxReadReplyData)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(HaveLen(sideband.MaxReadReplyData))
	})

	It("should NACK a remote I2C read too long for one reply", func() {
		Expect(r.SetI2CMap(1, 0x50, simulation.EDID(0x42, 9, nil))).To(Succeed())

		h, req, err := sideband.RemoteI2CReadRequest(port(1), 0x50, 0, 0xFF)
		Expect(err).NotTo(HaveOccurred())
		_, body := send(h, req)

		Expect(sideband.IsNack(body)).To(BeTrue())
		Expect(events.nacked).To(Equal([]bool{true}))
	})

	It("should serve remote I2C reads from the port's map", func() {
		edid := simulation.EDID(0x42, 9, nil)
		Expect(r.SetI2CMap(1, 0x50, edid)).To(Succeed())

		h, req, err := sideband.RemoteI2CReadRequest(port(1), 0x50, 5, 4)
		Expect(err).NotTo(HaveOccurred())
		_, body := send(h, req)

		data, err := sideband.ParseReadReply(body, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(edid[5:9]))

		p, err := r.Port(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.I2C[0].Offset).To(Equal(uint8(5)))
	})

	It("should limit the I2C map of a port", func() {
		for _, addr := range []uint8{0x50, 0x37, 0x3A} {
			Expect(r.SetI2CMap(2, addr, []byte{addr})).To(Succeed())
		}

		Expect(r.SetI2CMap(2, 0x50, []byte{0x00})).To(Succeed())
		Expect(r.SetI2CMap(2, 0x54, nil)).To(MatchError(dp.ErrCapacity))
		Expect(r.SetI2CMap(MaxPorts, 0x50, nil)).
			To(MatchError(dp.ErrInvalidArgument))
	})

	It("should track port bandwidth", func() {
		h, req, err := sideband.AllocatePayloadRequest(port(1), 1, 700)
		Expect(err).NotTo(HaveOccurred())
		_, body := send(h, req)
		Expect(body).To(Equal(req))

		h, req, err = sideband.EnumPathResourcesRequest(port(1))
		Expect(err).NotTo(HaveOccurred())
		_, body = send(h, req)

		res, err := sideband.ParsePathResources(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.FullPBN).To(Equal(uint16(2560)))
		Expect(res.AvailablePBN).To(BeZero())

		rh, body := send(sideband.ClearPayloadIDTableRequest())
		Expect(body).To(Equal([]byte{byte(sideband.ClearPayloadIDTable)}))
		Expect(rh.Broadcast).To(BeTrue())
		Expect(rh.Path).To(BeTrue())

		p, err := r.Port(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.AvailablePBN).To(Equal(uint16(2560)))
	})

	It("should NACK requests for hidden ports", func() {
		h, req, err := sideband.EnumPathResourcesRequest(port(2))
		Expect(err).NotTo(HaveOccurred())

		_, body := send(h, req)

		Expect(sideband.IsNack(body)).To(BeTrue())
	})

	It("should answer unsupported requests with a generic NACK", func() {
		h, req, err := sideband.RemoteDpcdWriteRequest(port(1), 0x100, []byte{1})
		Expect(err).NotTo(HaveOccurred())

		_, body := send(h, req)

		Expect(body).To(Equal(sideband.NackReply(
			sideband.RemoteDpcdWrite, guid, sideband.NackReasonWriteFailure)))
		Expect(events.handled).To(Equal(
			[]sideband.RequestID{sideband.RemoteDpcdWrite}))
	})

	It("should apply payload allocations from the RX core", func() {
		ctrl.SetMstAlloc(1, 1, 4)
		Expect(r.ServiceInterrupts()).To(Succeed())

		Expect(ctrl.Reg(regio.RxVcPayloadTable + 4*4)).To(Equal(uint32(1)))
		Expect(ctrl.Reg(regio.RxVcPayloadTable + 4*5)).To(BeZero())
		Expect(ctrl.Reg(regio.RxMstCap) & regio.RxMstCapVcpUpdate).
			NotTo(BeZero())

		ctrl.SetMstAlloc(2, 5, 2)
		Expect(r.ServiceInterrupts()).To(Succeed())

		ctrl.SetMstAlloc(1, 0, 0)
		Expect(r.ServiceInterrupts()).To(Succeed())

		table := r.PayloadTable()
		Expect(table[1:4]).To(Equal([]uint8{2, 2, 0}))
		Expect(ctrl.Reg(regio.RxVcPayloadTable + 4*1)).To(Equal(uint32(2)))
		Expect(ctrl.Reg(regio.RxVcPayloadTable + 4*5)).To(BeZero())

		ctrl.SetMstAlloc(0, 0, 0x3F)
		Expect(r.ServiceInterrupts()).To(Succeed())
		table = r.PayloadTable()
		Expect(table.Free()).To(Equal(63))

		Expect(events.payloads).To(Equal([]PayloadAllocation{
			{VcID: 1, Start: 1, Count: 4},
			{VcID: 2, Start: 5, Count: 2},
			{VcID: 1, Start: 0, Count: 0},
			{VcID: 0, Start: 0, Count: 0x3F},
		}))
	})

	It("should pass link events to the event sink", func() {
		ctrl.RaiseInterrupt(regio.RxCauseTrainingLost | regio.RxCauseUnplug)

		Expect(r.ServiceInterrupts()).To(Succeed())

		Expect(events.trainingLost).To(Equal(1))
		Expect(events.unplugged).To(Equal(1))
	})
})

var _ = Describe("Responder with a mocked messenger", func() {
	var (
		mockCtrl  *gomock.Controller
		messenger *MockRequestMessenger
		r         *Responder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		messenger = NewMockRequestMessenger(mockCtrl)

		var err error
		r, err = MakeResponderBuilder().
			WithMessenger(messenger).
			WithBus(simulation.NewRxController()).
			Build("Responder")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should wait for the rest of a request", func() {
		messenger.EXPECT().ReceiveRequest().Return(sideband.Request{}, false, nil)

		Expect(r.HandleDownRequest()).To(Succeed())
	})

	It("should report a receive error", func() {
		messenger.EXPECT().ReceiveRequest().
			Return(sideband.Request{}, false, dp.ErrCrcMismatch)

		Expect(r.HandleDownRequest()).To(MatchError(dp.ErrCrcMismatch))
	})

	It("should report a reply that cannot be sent", func() {
		h, body := sideband.LinkAddressRequest(sideband.RootTarget)
		messenger.EXPECT().ReceiveRequest().
			Return(sideband.Request{Header: h, Body: body}, true, nil)
		messenger.EXPECT().SendReply(gomock.Any(), gomock.Any()).
			Return(dp.ErrTimeout)

		Expect(r.HandleDownRequest()).To(MatchError(dp.ErrTimeout))
	})
})
