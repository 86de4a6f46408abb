package dp

import "fmt"

// LinkRate is the encoded main link rate as written to LINK_BW_SET.
type LinkRate uint8

// Link rates supported by the 8b/10b channel coding.
const (
	LinkRate162 LinkRate = 0x06
	LinkRate270 LinkRate = 0x0A
	LinkRate540 LinkRate = 0x14
	LinkRate810 LinkRate = 0x1E
)

// LinkRates lists the supported rates from lowest to highest.
var LinkRates = []LinkRate{LinkRate162, LinkRate270, LinkRate540, LinkRate810}

// Valid returns true if the rate is one of the supported encodings.
func (r LinkRate) Valid() bool {
	switch r {
	case LinkRate162, LinkRate270, LinkRate540, LinkRate810:
		return true
	default:
		return false
	}
}

// Lower returns the next lower rate. The second return value is false if r
// is already the lowest rate.
func (r LinkRate) Lower() (LinkRate, bool) {
	for i := len(LinkRates) - 1; i > 0; i-- {
		if LinkRates[i] == r {
			return LinkRates[i-1], true
		}
	}

	return r, false
}

// Higher returns the next higher rate. The second return value is false if r
// is already the highest rate.
func (r LinkRate) Higher() (LinkRate, bool) {
	for i := 0; i < len(LinkRates)-1; i++ {
		if LinkRates[i] == r {
			return LinkRates[i+1], true
		}
	}

	return r, false
}

// Gbps returns the per-lane bit rate in gigabits per second.
func (r LinkRate) Gbps() float64 {
	return float64(r) * 0.27
}

func (r LinkRate) String() string {
	if !r.Valid() {
		return fmt.Sprintf("LinkRate(0x%02X)", uint8(r))
	}

	return fmt.Sprintf("%.2fGbps", r.Gbps())
}

// ParseLinkRate converts a rate given in Gbps ("1.62", "2.7", "5.4", "8.1") or
// as an encoded value ("0x14") into a LinkRate.
func ParseLinkRate(s string) (LinkRate, error) {
	switch s {
	case "1.62", "0x06", "6":
		return LinkRate162, nil
	case "2.7", "2.70", "0x0A", "0x0a", "10":
		return LinkRate270, nil
	case "5.4", "5.40", "0x14", "20":
		return LinkRate540, nil
	case "8.1", "8.10", "0x1E", "0x1e", "30":
		return LinkRate810, nil
	}

	return 0, fmt.Errorf("%w: unknown link rate %q", ErrInvalidArgument, s)
}

// ValidLaneCount returns true for the lane counts the main link supports.
func ValidLaneCount(n int) bool {
	return n == 1 || n == 2 || n == 4
}

// LowerLaneCount returns the next lower valid lane count. The second return
// value is false if n is already 1.
func LowerLaneCount(n int) (int, bool) {
	switch n {
	case 4:
		return 2, true
	case 2:
		return 1, true
	default:
		return n, false
	}
}

// FloorLaneCount rounds n down to a valid lane count. Zero stays zero.
func FloorLaneCount(n int) int {
	switch {
	case n >= 4:
		return 4
	case n >= 2:
		return 2
	case n >= 1:
		return 1
	default:
		return 0
	}
}

// Protocol is the DisplayPort protocol generation of the controller.
type Protocol int

// Supported protocol generations.
const (
	ProtocolDP12 Protocol = iota
	ProtocolDP14
)

func (p Protocol) String() string {
	switch p {
	case ProtocolDP12:
		return "DP1.2"
	case ProtocolDP14:
		return "DP1.4"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// MaxLinkRate returns the highest rate the protocol generation allows.
func (p Protocol) MaxLinkRate() LinkRate {
	if p == ProtocolDP14 {
		return LinkRate810
	}

	return LinkRate540
}
