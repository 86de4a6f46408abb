package sideband

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/regio"
)

var _ = Describe("TxMessenger", func() {
	var (
		mockCtrl *gomock.Controller
		channel  *MockAuxChannel
		elapsed  uint32
		m        *TxMessenger
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		channel = NewMockAuxChannel(mockCtrl)
		elapsed = 0

		var err error
		m, err = MakeTxBuilder().
			WithAuxChannel(channel).
			WithTimer(regio.TimerFunc(func(us uint32) { elapsed += us })).
			WithReplyPollLimit(3).
			Build("Tx")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should need a channel and a timer", func() {
		_, err := MakeTxBuilder().Build("Tx")

		Expect(err).To(MatchError(dp.ErrInvalidArgument))
	})

	It("should clear the reply indicator before every fragment", func() {
		var written [][]byte

		calls := []any{}
		for i := 0; i < 3; i++ {
			calls = append(calls,
				channel.EXPECT().
					Write(dp.DpcdEsi0, []byte{dp.DownRepMsgRdy}).
					Return(nil),
				channel.EXPECT().
					Write(dp.DpcdDownReq, gomock.Any()).
					DoAndReturn(func(_ uint32, data []byte) error {
						written = append(written, data)
						return nil
					}),
			)
		}
		gomock.InOrder(calls...)

		err := m.Send(RootTarget.Header(), bodyOf(100))

		Expect(err).NotTo(HaveOccurred())
		Expect(written).To(HaveLen(3))

		r := Reassembler{}
		for _, raw := range written {
			frag, err := Decode(raw)
			Expect(err).NotTo(HaveOccurred())

			_, err = r.Add(frag)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(r.Done()).To(BeTrue())
		Expect(r.Body()).To(Equal(bodyOf(100)))
	})

	It("should stop at the first failed write", func() {
		channel.EXPECT().
			Write(dp.DpcdEsi0, gomock.Any()).
			Return(dp.ErrTimeout)

		err := m.Send(RootTarget.Header(), bodyOf(1))

		Expect(err).To(MatchError(dp.ErrTimeout))
	})

	It("should time out if no reply arrives", func() {
		channel.EXPECT().
			Read(dp.DpcdEsi0, gomock.Len(1)).
			Return(nil).
			Times(3)

		_, err := m.ReceiveReply()

		Expect(err).To(MatchError(dp.ErrTimeout))
		Expect(elapsed).To(BeNumerically(">=", 3*replyPollDelayUs))
	})

	Context("when a reply is ready", func() {
		deliver := func(body []byte) {
			frags, err := Fragment(ReplyHeader(), body)
			Expect(err).NotTo(HaveOccurred())

			for _, f := range frags {
				raw := f.Encode()

				channel.EXPECT().
					Read(dp.DpcdEsi0, gomock.Len(1)).
					DoAndReturn(func(_ uint32, buf []byte) error {
						buf[0] = dp.DownRepMsgRdy
						return nil
					})
				channel.EXPECT().
					Read(dp.DpcdDownRep, gomock.Len(MaxFragmentSize)).
					DoAndReturn(func(_ uint32, buf []byte) error {
						copy(buf, raw)
						return nil
					})
				channel.EXPECT().
					Write(dp.DpcdEsi0, []byte{dp.DownRepMsgRdy}).
					Return(nil)
			}
		}

		It("should reassemble the reply", func() {
			body := ReadReply(RemoteDpcdRead, 1, bodyOf(80))
			deliver(body)

			var received []Message
			m.AcceptHook(dp.HookFunc(func(ctx dp.HookCtx) {
				if ctx.Pos == dp.HookPosSidebandReceive {
					received = append(received, ctx.Item.(Message))
				}
			}))

			reply, err := m.ReceiveReply()

			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(body))
			Expect(received).To(HaveLen(2))
			Expect(received[1].FragmentNum).To(Equal(1))
		})

		It("should report a NACK", func() {
			body := NackReply(LinkAddress, GUID{}, NackReasonWriteFailure)
			deliver(body)

			reply, err := m.ReceiveReply()

			Expect(err).To(MatchError(dp.ErrNacked))
			Expect(reply).To(Equal(body))
		})

		It("should report a corrupted fragment", func() {
			channel.EXPECT().
				Read(dp.DpcdEsi0, gomock.Len(1)).
				DoAndReturn(func(_ uint32, buf []byte) error {
					buf[0] = dp.DownRepMsgRdy
					return nil
				})
			channel.EXPECT().
				Read(dp.DpcdDownRep, gomock.Any()).
				DoAndReturn(func(_ uint32, buf []byte) error {
					copy(buf, []byte{0x10, 0x02, 0xCB, 0x01, 0x00})
					return nil
				})

			_, err := m.ReceiveReply()

			Expect(err).To(MatchError(dp.ErrCrcMismatch))
		})
	})

	It("should pass read errors through", func() {
		failure := errors.New("bus fault")
		channel.EXPECT().
			Read(dp.DpcdEsi0, gomock.Any()).
			Return(failure)

		_, err := m.ReceiveReply()

		Expect(err).To(MatchError(failure))
	})
})
