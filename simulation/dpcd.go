package simulation

// DPCDSpace is a sparse DPCD address space. Unwritten addresses read as 0.
type DPCDSpace struct {
	mem map[uint32]byte
}

// NewDPCDSpace creates an empty address space.
func NewDPCDSpace() *DPCDSpace {
	return &DPCDSpace{mem: make(map[uint32]byte)}
}

// Get returns the byte at addr.
func (s *DPCDSpace) Get(addr uint32) byte {
	return s.mem[addr]
}

// Set stores v at addr.
func (s *DPCDSpace) Set(addr uint32, v byte) {
	s.mem[addr] = v
}

// Read fills buf from addr on.
func (s *DPCDSpace) Read(addr uint32, buf []byte) {
	for i := range buf {
		buf[i] = s.mem[addr+uint32(i)]
	}
}

// Write stores data from addr on.
func (s *DPCDSpace) Write(addr uint32, data []byte) {
	for i, b := range data {
		s.mem[addr+uint32(i)] = b
	}
}

// Slice returns a copy of n bytes from addr on.
func (s *DPCDSpace) Slice(addr uint32, n int) []byte {
	buf := make([]byte, n)
	s.Read(addr, buf)

	return buf
}
