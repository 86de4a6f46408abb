package topology

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
)

// ReadTiledDisplay reads the EDID of the device at t and returns the tiled
// display data block of its first DisplayID extension that has one.
func (m *Manager) ReadTiledDisplay(t sideband.Target) (dp.TiledDisplay, bool, error) {
	base := make([]byte, dp.EdidBlockSize)
	if err := m.RemoteI2CRead(t, edidAddress, 0, base); err != nil {
		return dp.TiledDisplay{}, false, err
	}

	ext := make([]byte, dp.EdidBlockSize)

	for i := 1; i <= int(base[dp.EdidExtensionCountIdx]); i++ {
		err := m.RemoteI2CRead(t, edidAddress, uint16(i*dp.EdidBlockSize), ext)
		if err != nil {
			return dp.TiledDisplay{}, false, err
		}

		if tile, ok := dp.ParseTiledDisplay(ext); ok {
			return tile, true, nil
		}
	}

	return dp.TiledDisplay{}, false, nil
}

// SortSinksByTiling reorders the sink list so that the tiles of each tiled
// display appear in row-major tile order. The tiles of a display keep the
// positions the display's sinks occupied, so non-tiled sinks stay where
// they are. A sink whose EDID cannot be read is treated as non-tiled and
// its error is returned after sorting.
func (m *Manager) SortSinksByTiling() error {
	n := m.nodes.NumSinks()
	tiles := make([]dp.TiledDisplay, n)
	tiled := make([]bool, n)

	var errs []error

	for i := 0; i < n; i++ {
		s := m.nodes.Sink(i)

		tile, ok, err := m.ReadTiledDisplay(s.Target)
		if err != nil {
			errs = append(errs, fmt.Errorf("EDID of %s: %w", s.Target, err))
			continue
		}

		tiles[i] = tile
		tiled[i] = ok
	}

	order := m.nodes.SinkIndices()
	done := make([]bool, n)

	for i := 0; i < n; i++ {
		if !tiled[i] || done[i] {
			continue
		}

		var group []int

		for j := i; j < n; j++ {
			if tiled[j] && !done[j] && tiles[j].SameDisplay(tiles[i]) {
				group = append(group, j)
				done[j] = true
			}
		}

		members := append([]int(nil), group...)
		sort.SliceStable(members, func(a, b int) bool {
			return tiles[members[a]].TileOrder() < tiles[members[b]].TileOrder()
		})

		for k, pos := range group {
			m.nodes.sinks[pos] = order[members[k]]
		}
	}

	return errors.Join(errs...)
}
