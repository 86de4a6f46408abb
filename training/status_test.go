package training

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dplink/dp"
)

func statusWith(lanes int, bits uint8, align bool) []byte {
	status := make([]byte, dp.DpcdLinkStatusLength)

	for l := 0; l < lanes; l++ {
		if l%2 == 0 {
			status[l/2] |= bits
		} else {
			status[l/2] |= bits << 4
		}
	}

	if align {
		status[2] = dp.InterlaneAlignDone
	}

	return status
}

var _ = Describe("Lane status", func() {
	all := dp.LaneCRDone | dp.LaneChannelEqDone | dp.LaneSymbolLocked

	DescribeTable("should examine only the lanes in use",
		func(lanes int) {
			status := statusWith(lanes, all, true)

			Expect(ClockRecoveryDone(status, lanes)).To(BeTrue())
			Expect(ChannelEqualizationDone(status, lanes)).To(BeTrue())

			if lanes < 4 {
				Expect(ClockRecoveryDone(status, 4)).To(BeFalse())
				Expect(ChannelEqualizationDone(status, 4)).To(BeFalse())
			}
		},
		Entry("1 lane", 1),
		Entry("2 lanes", 2),
		Entry("4 lanes", 4),
	)

	DescribeTable("should ignore status bits of unused lanes",
		func(lanes int) {
			status := statusWith(4, 0, true)
			copy(status, statusWith(lanes, all, true)[:2])

			for l := lanes; l < 4; l++ {
				if l%2 == 0 {
					status[l/2] |= dp.LaneChannelEqDone
				} else {
					status[l/2] |= dp.LaneSymbolLocked << 4
				}
			}

			Expect(ClockRecoveryDone(status, lanes)).To(BeTrue())
			Expect(ChannelEqualizationDone(status, lanes)).To(BeTrue())
		},
		Entry("1 lane", 1),
		Entry("2 lanes", 2),
	)

	DescribeTable("should detect a missing lane",
		func(lanes, broken int) {
			status := statusWith(lanes, all, true)
			if broken%2 == 0 {
				status[broken/2] &^= 0x0F
			} else {
				status[broken/2] &^= 0xF0
			}

			Expect(ClockRecoveryDone(status, lanes)).To(BeFalse())
			Expect(ClockRecoveryLanes(status, lanes)).To(Equal(broken))
			Expect(ChannelEqualizationDone(status, lanes)).To(BeFalse())
		},
		Entry("lane 0 of 1", 1, 0),
		Entry("lane 1 of 2", 2, 1),
		Entry("lane 2 of 4", 4, 2),
		Entry("lane 3 of 4", 4, 3),
	)

	It("should require interlane alignment", func() {
		status := statusWith(4, all, false)

		Expect(ClockRecoveryDone(status, 4)).To(BeTrue())
		Expect(ChannelEqualizationDone(status, 4)).To(BeFalse())
	})

	It("should require symbol lock", func() {
		status := statusWith(2, dp.LaneCRDone|dp.LaneChannelEqDone, true)

		Expect(ChannelEqualizationDone(status, 2)).To(BeFalse())
	})

	It("should take the highest drive request of the lanes in use", func() {
		status := make([]byte, dp.DpcdLinkStatusLength)
		status[4] = 0x01 | 0x02<<4
		status[5] = 0x03 | 0x0C<<4

		vs, pe := DriveRequest(status, 2)
		Expect(vs).To(Equal(uint8(2)))
		Expect(pe).To(Equal(uint8(0)))

		vs, pe = DriveRequest(status, 4)
		Expect(vs).To(Equal(uint8(3)))
		Expect(pe).To(Equal(uint8(1)))
	})

	It("should encode the lane drive setting", func() {
		Expect(LaneDriveSetting(0, 0)).To(Equal(uint8(0x00)))
		Expect(LaneDriveSetting(1, 2)).To(Equal(uint8(0x11)))
		Expect(LaneDriveSetting(3, 1)).To(Equal(uint8(0x0F)))
		Expect(LaneDriveSetting(0, 3)).To(Equal(uint8(0x38)))
	})

	DescribeTable("should derive the status read delay",
		func(interval uint8, s State, want uint32) {
			Expect(Delay(interval, s)).To(Equal(want))
		},
		Entry("default clock recovery", uint8(0), ClockRecovery, uint32(100)),
		Entry("default equalization", uint8(0), ChannelEqualization, uint32(400)),
		Entry("4 ms", uint8(1), ClockRecovery, uint32(4000)),
		Entry("16 ms", uint8(4), ChannelEqualization, uint32(16000)),
		Entry("reserved", uint8(9), ClockRecovery, uint32(20000)),
		Entry("extended caps flag", uint8(0x82), ClockRecovery, uint32(8000)),
	)
})

var _ = Describe("Short lane status", func() {
	It("should panic with the expected length", func() {
		Expect(func() { ClockRecoveryLanes([]byte{0, 0}, 1) }).
			To(PanicWith(ContainSubstring("must hold 6 bytes, got 2")))
	})
})
