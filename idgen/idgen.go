// Package idgen generates identifiers for transactions, sideband messages and
// training runs.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator can generate IDs
type Generator interface {
	// Generate an ID
	Generate() string
}

// NewSequential returns a generator whose first emitted ID is "1". IDs are
// deterministic, which keeps recorded traces comparable between runs.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewXID returns a generator of globally unique xid strings.
func NewXID() Generator {
	return xidGenerator{}
}

// ByName returns the generator with the given name, "sequential" or "xid".
// Unknown names fall back to sequential.
func ByName(name string) Generator {
	if name == "xid" {
		return NewXID()
	}

	return NewSequential()
}

type sequentialGenerator struct {
	nextID uint64
}

func (g *sequentialGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	return strconv.FormatUint(idNumber, 10)
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
