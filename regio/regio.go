// Package regio defines the register I/O collaborators of the protocol engine
// and the register map of the DisplayPort TX and RX cores.
package regio

// Bus is 32-bit register access at offsets from a core's base address.
type Bus interface {
	ReadReg(offset uint32) uint32
	WriteReg(offset uint32, value uint32)
}

// Timer provides the microsecond delay primitive. Implementations may
// busy-wait, sleep, or advance a virtual clock.
type Timer interface {
	DelayUs(us uint32)
}

// TimerFunc adapts a function into a Timer.
type TimerFunc func(us uint32)

// DelayUs calls f(us).
func (f TimerFunc) DelayUs(us uint32) {
	f(us)
}

// SetBits sets the given bits of a register, leaving the others untouched.
func SetBits(b Bus, offset uint32, bits uint32) {
	b.WriteReg(offset, b.ReadReg(offset)|bits)
}

// ClearBits clears the given bits of a register, leaving the others
// untouched.
func ClearBits(b Bus, offset uint32, bits uint32) {
	b.WriteReg(offset, b.ReadReg(offset)&^bits)
}
