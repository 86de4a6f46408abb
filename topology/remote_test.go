package topology

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/simulation"
)

var _ = Describe("Remote access", func() {
	var (
		root  *simulation.Branch
		leaf  *simulation.RemoteSink
		edid  []byte
		env   txEnv
		leafT sideband.Target
	)

	BeforeEach(func() {
		edid = make([]byte, 3*dp.EdidBlockSize)
		for i := range edid {
			edid[i] = byte(i % 251)
		}

		root = simulation.NewBranch()
		root.SetGUID(sideband.GUID{0x10})
		leaf = simulation.NewRemoteSink(edid)
		root.AddSink(1, leaf)

		env = newTxEnv(root)
		leafT = sideband.RootTarget.Child(1)
	})

	It("should read remote DPCD in chunks", func() {
		for i := 0; i < 40; i++ {
			leaf.DPCD.Set(uint32(0x100+i), byte(i+1))
		}

		buf := make([]byte, 40)
		Expect(env.manager.RemoteDpcdRead(leafT, 0x100, buf)).To(Succeed())

		Expect(buf).To(Equal(leaf.DPCD.Slice(0x100, 40)))
		Expect(root.Requests()).To(Equal([]sideband.RequestID{
			sideband.RemoteDpcdRead,
			sideband.RemoteDpcdRead,
			sideband.RemoteDpcdRead,
		}))
	})

	It("should write remote DPCD in chunks", func() {
		data := make([]byte, 20)
		for i := range data {
			data[i] = byte(0xA0 + i)
		}

		Expect(env.manager.RemoteDpcdWrite(leafT, 0x600, data)).To(Succeed())

		Expect(leaf.DPCD.Slice(0x600, 20)).To(Equal(data))
		Expect(root.Requests()).To(HaveLen(2))
	})

	It("should read the directly attached device over AUX", func() {
		env.sink.DPCD.Set(0x300, 0x5A)

		buf := []byte{0}
		Expect(env.manager.RemoteDpcdRead(sideband.RootTarget, 0x300, buf)).
			To(Succeed())

		Expect(buf[0]).To(Equal(uint8(0x5A)))
		Expect(root.Requests()).To(BeEmpty())
	})

	It("should read I2C across a segment boundary", func() {
		buf := make([]byte, 20)

		Expect(env.manager.RemoteI2CRead(leafT, 0x50, 250, buf)).To(Succeed())

		Expect(buf).To(Equal(edid[250:270]))
	})

	It("should reset the segment pointer after a read", func() {
		buf := make([]byte, 8)
		Expect(env.manager.RemoteI2CRead(leafT, 0x50, 300, buf)).To(Succeed())
		Expect(buf).To(Equal(edid[300:308]))

		Expect(env.manager.RemoteI2CRead(leafT, 0x50, 0, buf)).To(Succeed())
		Expect(buf).To(Equal(edid[0:8]))
	})

	It("should write to a remote I2C device", func() {
		Expect(env.manager.RemoteI2CWrite(leafT, 0x50, []byte{0x04, 0xEE})).
			To(Succeed())

		buf := []byte{0}
		Expect(env.manager.RemoteI2CRead(leafT, 0x50, 4, buf)).To(Succeed())
		Expect(buf[0]).To(Equal(uint8(0xEE)))
	})

	It("should write remote I2C in chunks", func() {
		data := make([]byte, 40)
		data[0] = 0x10
		for i := 1; i < len(data); i++ {
			data[i] = byte(0xC0 + i)
		}

		Expect(env.manager.RemoteI2CWrite(leafT, 0x50, data)).To(Succeed())

		Expect(root.Requests()).To(Equal([]sideband.RequestID{
			sideband.RemoteI2CWrite,
			sideband.RemoteI2CWrite,
			sideband.RemoteI2CWrite,
		}))

		buf := make([]byte, 15)
		Expect(env.manager.RemoteI2CRead(leafT, 0x50, 0x10, buf)).To(Succeed())
		Expect(buf).To(Equal(data[1:16]))
	})

	It("should report a NACK from a missing I2C device", func() {
		buf := make([]byte, 4)

		err := env.manager.RemoteI2CRead(leafT, 0x37, 0, buf)

		Expect(err).To(MatchError(dp.ErrNacked))
	})

	It("should enumerate path resources", func() {
		res, err := env.manager.EnumPathResources(leafT)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Port).To(Equal(uint8(1)))
		Expect(res.FullPBN).To(Equal(uint16(simulation.DefaultFullPBN)))
		Expect(res.AvailablePBN).To(Equal(uint16(simulation.DefaultFullPBN)))
	})

	It("should reserve and release path bandwidth", func() {
		Expect(env.manager.AllocatePayloadSideband(leafT, 1, 300)).To(Succeed())
		Expect(root.Port(1).AvailablePBN).To(BeZero())

		Expect(env.manager.AllocatePayloadSideband(leafT, 1, 0)).To(Succeed())
		Expect(root.Port(1).AvailablePBN).
			To(Equal(uint16(simulation.DefaultFullPBN)))
	})

	It("should refuse path requests for the root", func() {
		_, err := env.manager.EnumPathResources(sideband.RootTarget)

		Expect(err).To(MatchError(dp.ErrInvalidArgument))
	})
})
