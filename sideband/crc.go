package sideband

const (
	crc4Polynomial = 0x13
	crc8Polynomial = 0x1D5
)

// crc runs a polynomial long division over the first numBits bits of data.
// Each element of data carries width bits (4 for nibbles, 8 for bytes), most
// significant bit first.
func crc(data []byte, numBits int, width, degree uint, poly uint16) uint8 {
	var remainder uint16

	idx := 0
	bit := width - 1

	for i := 0; i < numBits; i++ {
		remainder <<= 1
		remainder |= uint16(data[idx]>>bit) & 1

		if bit == 0 {
			bit = width - 1
			idx++
		} else {
			bit--
		}

		if remainder&(1<<degree) != 0 {
			remainder ^= poly
		}
	}

	for i := uint(0); i < degree; i++ {
		remainder <<= 1

		if remainder&(1<<degree) != 0 {
			remainder ^= poly
		}
	}

	return uint8(remainder & 0xFF)
}

// HeaderCRC computes the 4-bit CRC of a sideband header. The Crc field of h
// is not part of the computation.
func HeaderCRC(h Header) uint8 {
	nibbles := make([]byte, 0, 20)
	nibbles = append(nibbles, h.LinkCountTotal&0xF, h.LinkCountRemaining&0xF)

	hops := int(h.LinkCountTotal) - 1
	for i := 0; i < hops; i += 2 {
		nibbles = append(nibbles, h.RelativeAddress[i]&0xF)

		if i+1 < hops {
			nibbles = append(nibbles, h.RelativeAddress[i+1]&0xF)
		} else {
			nibbles = append(nibbles, 0)
		}
	}

	nibbles = append(nibbles,
		boolBit(h.Broadcast)<<3|boolBit(h.Path)<<2|(h.BodyLength&0x30)>>4,
		h.BodyLength&0xF,
		boolBit(h.StartOfTransaction)<<3|boolBit(h.EndOfTransaction)<<2|
			h.SequenceNum&0x1,
	)

	return crc(nibbles, 4*len(nibbles), 4, 4, crc4Polynomial)
}

// BodyCRC computes the 8-bit CRC of a fragment body.
func BodyCRC(body []byte) uint8 {
	return crc(body, 8*len(body), 8, 8, crc8Polynomial)
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}

	return 0
}
