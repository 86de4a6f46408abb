package simulation

import "github.com/sarchlab/dplink/dp"

var edidHeader = []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// EDID builds a base EDID block for the given product. When tile is not nil
// a DisplayID extension carrying the tiled display data block is appended.
func EDID(product uint16, serial uint32, tile *dp.TiledDisplay) []byte {
	base := make([]byte, dp.EdidBlockSize)
	copy(base, edidHeader)

	// "DPL" packed as three 5-bit letters.
	base[8] = 0x12
	base[9] = 0x0C
	base[10] = byte(product)
	base[11] = byte(product >> 8)
	base[12] = byte(serial)
	base[13] = byte(serial >> 8)
	base[14] = byte(serial >> 16)
	base[15] = byte(serial >> 24)
	base[18] = 1
	base[19] = 4

	if tile != nil {
		base[dp.EdidExtensionCountIdx] = 1
	}

	checksum(base)

	if tile == nil {
		return base
	}

	return append(base, dp.DisplayIDExtension(tile.Block())...)
}

func checksum(block []byte) {
	var sum byte
	for _, b := range block[:len(block)-1] {
		sum += b
	}

	block[len(block)-1] = -sum
}
