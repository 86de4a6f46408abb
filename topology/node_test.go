package topology

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
)

var _ = Describe("Arena", func() {
	var a *Arena

	BeforeEach(func() {
		a = NewArena()
	})

	It("should keep sinks as node indices", func() {
		_, err := a.Add(Node{DeviceType: sideband.PeerBranch})
		Expect(err).NotTo(HaveOccurred())

		idx, err := a.AddSink(Node{
			DeviceType: sideband.PeerSstSink,
			Target:     sideband.RootTarget.Child(3),
			PortNumber: 3,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(idx).To(Equal(1))
		Expect(a.Len()).To(Equal(2))
		Expect(a.SinkIndices()).To(Equal([]int{1}))
		Expect(a.Sink(0).PortNumber).To(Equal(uint8(3)))
		Expect(a.Sink(0).LinkCountTotal()).To(Equal(uint8(2)))
		Expect(a.Sink(0).RelativeAddress()).To(Equal([]uint8{3}))
		Expect(a.Node(0).IsBranch()).To(BeTrue())
	})

	It("should reject a node past its capacity", func() {
		for i := 0; i < MaxNodes; i++ {
			_, err := a.Add(Node{})
			Expect(err).NotTo(HaveOccurred())
		}

		_, err := a.AddSink(Node{})

		Expect(err).To(MatchError(dp.ErrCapacity))
		Expect(a.Len()).To(Equal(MaxNodes))
		Expect(a.NumSinks()).To(BeZero())
	})

	It("should swap sinks without moving nodes", func() {
		_, _ = a.AddSink(Node{PortNumber: 1})
		_, _ = a.AddSink(Node{PortNumber: 2})

		a.SwapSinks(0, 1)

		Expect(a.Sink(0).PortNumber).To(Equal(uint8(2)))
		Expect(a.Node(0).PortNumber).To(Equal(uint8(1)))
	})

	It("should forget everything on reset", func() {
		_, _ = a.AddSink(Node{})

		a.Reset()

		Expect(a.Len()).To(BeZero())
		Expect(a.NumSinks()).To(BeZero())
	})
})

var _ = Describe("GUIDPool", func() {
	It("should hand out distinct non-zero GUIDs until exhausted", func() {
		p := GUIDPool{}
		seen := map[sideband.GUID]bool{}

		for i := 0; i < GUIDPoolSize; i++ {
			g, err := p.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(g.IsZero()).To(BeFalse())
			Expect(seen).NotTo(HaveKey(g))
			seen[g] = true
		}

		_, err := p.Next()
		Expect(err).To(MatchError(dp.ErrCapacity))

		p.Reset()
		g, err := p.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(Equal(PoolGUID(0)))
	})
})

var _ = Describe("PayloadTable", func() {
	var t PayloadTable

	BeforeEach(func() {
		t = PayloadTable{}
	})

	DescribeTable("range checks",
		func(vcID uint8, start, count int, want error) {
			err := t.CheckRange(vcID, start, count)
			if want == nil {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(MatchError(want))
			}
		},
		Entry("whole stream area", uint8(1), 1, 63, nil),
		Entry("last slot", uint8(1), 63, 1, nil),
		Entry("slot 0", uint8(1), 0, 4, dp.ErrBufferTooSmall),
		Entry("past the end", uint8(1), 60, 5, dp.ErrBufferTooSmall),
		Entry("clear", uint8(0), 0, 64, nil),
		Entry("more than the table", uint8(0), 0, 65, dp.ErrInvalidArgument),
		Entry("negative start", uint8(2), -1, 1, dp.ErrInvalidArgument),
	)

	It("should refuse slots held by another channel", func() {
		Expect(t.Assign(1, 1, 10)).To(Succeed())

		err := t.Assign(2, 8, 4)

		Expect(err).To(MatchError(dp.ErrBufferTooSmall))
		Expect(t.Slots(2)).To(BeZero())
	})

	It("should compact the channels behind a removed one", func() {
		Expect(t.Assign(1, 1, 3)).To(Succeed())
		Expect(t.Assign(2, 4, 2)).To(Succeed())
		Expect(t.Assign(3, 6, 1)).To(Succeed())

		t.Remove(2)

		Expect(t[1:6]).To(Equal([]uint8{1, 1, 1, 3, 0}))
		Expect(t.Slots(2)).To(BeZero())
		Expect(t.Free()).To(Equal(59))
	})

	It("should free every slot on clear", func() {
		Expect(t.Assign(1, 1, 63)).To(Succeed())
		Expect(t.Free()).To(BeZero())

		t.Clear()

		Expect(t.Free()).To(Equal(63))
	})
})
