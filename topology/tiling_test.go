package topology

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
	"github.com/sarchlab/dplink/simulation"
)

var _ = Describe("SortSinksByTiling", func() {
	var (
		root *simulation.Branch
		env  txEnv
	)

	tile := func(serial uint32, h, v, x, y uint8) *dp.TiledDisplay {
		return &dp.TiledDisplay{
			Vendor:             [3]byte{'D', 'P', 'L'},
			Product:            0x1234,
			Serial:             serial,
			HorizontalTiles:    h,
			VerticalTiles:      v,
			HorizontalLocation: x,
			VerticalLocation:   y,
		}
	}

	ports := func() []uint8 {
		var p []uint8
		for _, s := range env.manager.Sinks() {
			p = append(p, s.PortNumber)
		}

		return p
	}

	BeforeEach(func() {
		root = simulation.NewBranch()
		root.SetGUID(sideband.GUID{0x10})
	})

	It("should order the tiles of a display around non-tiled sinks", func() {
		root.AddSink(1, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 7, tile(7, 2, 1, 1, 0))))
		root.AddSink(2, simulation.NewRemoteSink(simulation.EDID(0x99, 1, nil)))
		root.AddSink(3, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 7, tile(7, 2, 1, 0, 0))))
		env = newTxEnv(root)

		Expect(env.manager.Discover()).To(Succeed())
		Expect(ports()).To(Equal([]uint8{1, 2, 3}))

		Expect(env.manager.SortSinksByTiling()).To(Succeed())

		Expect(ports()).To(Equal([]uint8{3, 2, 1}))
	})

	It("should sort each display on its own", func() {
		root.AddSink(1, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 1, tile(1, 2, 2, 1, 1))))
		root.AddSink(2, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 2, tile(2, 2, 1, 1, 0))))
		root.AddSink(3, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 1, tile(1, 2, 2, 0, 1))))
		root.AddSink(4, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 2, tile(2, 2, 1, 0, 0))))
		root.AddSink(5, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 1, tile(1, 2, 2, 1, 0))))
		env = newTxEnv(root)

		Expect(env.manager.Discover()).To(Succeed())
		Expect(env.manager.SortSinksByTiling()).To(Succeed())

		Expect(ports()).To(Equal([]uint8{5, 4, 3, 2, 1}))
	})

	It("should leave sinks without an EDID in place", func() {
		root.AddSink(1, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 7, tile(7, 2, 1, 1, 0))))
		root.AddSink(2, simulation.NewRemoteSink(nil))
		root.AddSink(3, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 7, tile(7, 2, 1, 0, 0))))
		env = newTxEnv(root)

		Expect(env.manager.Discover()).To(Succeed())

		err := env.manager.SortSinksByTiling()

		Expect(err).To(MatchError(dp.ErrNacked))
		Expect(ports()).To(Equal([]uint8{3, 2, 1}))
	})

	It("should read the tile of a sink", func() {
		root.AddSink(1, simulation.NewRemoteSink(
			simulation.EDID(0x1234, 7, tile(7, 3, 2, 2, 1))))
		env = newTxEnv(root)

		got, ok, err := env.manager.ReadTiledDisplay(sideband.RootTarget.Child(1))

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(*tile(7, 3, 2, 2, 1)))
		Expect(got.TileOrder()).To(Equal(5))
	})
})
