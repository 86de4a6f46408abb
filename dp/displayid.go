package dp

// EDID and DisplayID layout used to recognize tiled displays.
const (
	EdidBlockSize         = 128
	EdidExtensionCountIdx = 126
	EdidExtDisplayIDTag   = 0x70
	DisplayIDTiledTag     = 0x12
	displayIDHeaderSize   = 5
	tiledBlockSize        = 25
)

// TiledDisplay is the Tiled Display Topology data block of a DisplayID
// extension. Tiles are counted and located from 0.
type TiledDisplay struct {
	Vendor  [3]byte
	Product uint16
	Serial  uint32

	HorizontalTiles    uint8
	VerticalTiles      uint8
	HorizontalLocation uint8
	VerticalLocation   uint8
}

// NumTiles returns the number of tiles of the display.
func (t TiledDisplay) NumTiles() int {
	return int(t.HorizontalTiles) * int(t.VerticalTiles)
}

// TileOrder returns the position of the tile in row-major order.
func (t TiledDisplay) TileOrder() int {
	return int(t.VerticalLocation)*int(t.HorizontalTiles) +
		int(t.HorizontalLocation)
}

// SameDisplay returns true if both tiles belong to the same physical
// display.
func (t TiledDisplay) SameDisplay(o TiledDisplay) bool {
	return t.Vendor == o.Vendor && t.Product == o.Product &&
		t.Serial == o.Serial
}

// Block serializes the tiled display data block.
func (t TiledDisplay) Block() []byte {
	b := make([]byte, tiledBlockSize)
	b[0] = DisplayIDTiledTag
	b[2] = tiledBlockSize - 3

	h := t.HorizontalTiles - 1
	v := t.VerticalTiles - 1
	b[4] = (h&0xF)<<4 | v&0xF
	b[5] = (t.HorizontalLocation&0xF)<<4 | t.VerticalLocation&0xF
	b[6] = (h>>4&0x3)<<6 | (v>>4&0x3)<<4 |
		(t.HorizontalLocation>>4&0x3)<<2 | t.VerticalLocation>>4&0x3

	copy(b[15:18], t.Vendor[:])
	b[18] = byte(t.Product)
	b[19] = byte(t.Product >> 8)
	b[20] = byte(t.Serial)
	b[21] = byte(t.Serial >> 8)
	b[22] = byte(t.Serial >> 16)
	b[23] = byte(t.Serial >> 24)

	return b
}

// ParseTiledDisplay searches a DisplayID extension block for the tiled
// display data block.
func ParseTiledDisplay(ext []byte) (TiledDisplay, bool) {
	t := TiledDisplay{}

	if len(ext) < displayIDHeaderSize || ext[0] != EdidExtDisplayIDTag {
		return t, false
	}

	end := min(displayIDHeaderSize+int(ext[2]), len(ext))

	for idx := displayIDHeaderSize; idx+3 <= end; {
		size := 3 + int(ext[idx+2])
		if ext[idx] == DisplayIDTiledTag && size >= tiledBlockSize &&
			idx+size <= len(ext) {
			return decodeTiledBlock(ext[idx : idx+size]), true
		}

		if ext[idx] == 0 && ext[idx+2] == 0 {
			break
		}

		idx += size
	}

	return t, false
}

func decodeTiledBlock(b []byte) TiledDisplay {
	t := TiledDisplay{}

	t.HorizontalTiles = (b[4]>>4 | (b[6]>>6&0x3)<<4) + 1
	t.VerticalTiles = (b[4]&0xF | (b[6]>>4&0x3)<<4) + 1
	t.HorizontalLocation = b[5]>>4 | (b[6]>>2&0x3)<<4
	t.VerticalLocation = b[5]&0xF | (b[6]&0x3)<<4

	copy(t.Vendor[:], b[15:18])
	t.Product = uint16(b[18]) | uint16(b[19])<<8
	t.Serial = uint32(b[20]) | uint32(b[21])<<8 | uint32(b[22])<<16 |
		uint32(b[23])<<24

	return t
}

// DisplayIDExtension wraps data blocks into a 128-byte DisplayID extension.
func DisplayIDExtension(blocks ...[]byte) []byte {
	ext := make([]byte, EdidBlockSize)
	ext[0] = EdidExtDisplayIDTag
	ext[1] = 0x12

	idx := displayIDHeaderSize
	for _, b := range blocks {
		idx += copy(ext[idx:EdidBlockSize-1], b)
	}

	ext[2] = byte(idx - displayIDHeaderSize)

	var sum byte
	for _, b := range ext[:EdidBlockSize-1] {
		sum += b
	}

	ext[EdidBlockSize-1] = -sum

	return ext
}
