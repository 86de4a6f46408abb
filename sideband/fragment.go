package sideband

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
)

// MaxFragmentBody returns the number of body bytes a fragment with the given
// header can carry.
func MaxFragmentBody(h Header) int {
	return MaxFragmentSize - h.Len() - 1
}

// NumFragments returns how many fragments a body of n bytes needs under
// header h.
func NumFragments(h Header, n int) int {
	per := MaxFragmentBody(h)
	if n == 0 {
		return 1
	}

	return (n + per - 1) / per
}

// Fragment splits body into fragments that each fit the 48-byte window.
// Every fragment carries a copy of h with its own body length and CRC; only
// the first has the start flag and only the last has the end flag.
func Fragment(h Header, body []byte) ([]Message, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d byte body exceeds %d",
			dp.ErrInvalidArgument, len(body), MaxBodySize)
	}

	per := MaxFragmentBody(h)
	count := NumFragments(h, len(body))
	msgs := make([]Message, 0, count)

	for i := 0; i < count; i++ {
		start := i * per
		end := min(start+per, len(body))

		fh := h
		fh.RelativeAddress = append([]uint8(nil), h.RelativeAddress...)

		fh.BodyLength = uint8(end-start) + 1
		fh.StartOfTransaction = i == 0
		fh.EndOfTransaction = i == count-1
		fh.Crc = HeaderCRC(fh)

		msgs = append(msgs, Message{
			Header:      fh,
			Body:        append([]byte(nil), body[start:end]...),
			FragmentNum: i,
		})
	}

	return msgs, nil
}

// A Reassembler collects fragments until the end of a transaction.
type Reassembler struct {
	header    Header
	body      []byte
	fragments int
	started   bool
	done      bool
}

// Add appends a fragment. It returns true once the fragment carrying the end
// flag has been added.
func (r *Reassembler) Add(m Message) (bool, error) {
	if m.Header.StartOfTransaction {
		r.Reset()
		r.header = m.Header
		r.started = true
	}

	if !r.started {
		return false, fmt.Errorf("%w: fragment before start of transaction",
			dp.ErrProtocolFailure)
	}

	if r.done {
		return false, fmt.Errorf("%w: fragment after end of transaction",
			dp.ErrProtocolFailure)
	}

	if len(r.body)+len(m.Body) > MaxBodySize {
		return false, fmt.Errorf("%w: reassembled body exceeds %d bytes",
			dp.ErrProtocolFailure, MaxBodySize)
	}

	r.body = append(r.body, m.Body...)
	r.fragments++

	if m.Header.EndOfTransaction {
		r.done = true
	}

	return r.done, nil
}

// Done returns true if the transaction is complete.
func (r *Reassembler) Done() bool {
	return r.done
}

// Fragments returns the number of fragments added to the transaction.
func (r *Reassembler) Fragments() int {
	return r.fragments
}

// Header returns the header of the first fragment.
func (r *Reassembler) Header() Header {
	return r.header
}

// Body returns the body collected so far.
func (r *Reassembler) Body() []byte {
	return r.body
}

// Reset discards the collected fragments.
func (r *Reassembler) Reset() {
	r.header = Header{}
	r.body = nil
	r.fragments = 0
	r.started = false
	r.done = false
}
