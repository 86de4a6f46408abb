// Package topology implements MST topology management. The transmitter side
// discovers the tree of branch and sink devices, issues GUIDs, orders tiled
// sinks and programs the payload table. The receiver side answers sideband
// down requests for a shallow virtual topology.
package topology

import (
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
)

// MaxNodes is the capacity of the node arena.
const MaxNodes = 63

// A Node is a device found during discovery.
type Node struct {
	GUID       sideband.GUID
	Target     sideband.Target
	DeviceType uint8
	DPCDRev    uint8
	MsgCapable bool

	// PortNumber is the port of the parent branch the device hangs off.
	PortNumber uint8
}

// LinkCountTotal returns the number of links between the source and the
// device.
func (n Node) LinkCountTotal() uint8 {
	return n.Target.LinkCountTotal
}

// RelativeAddress returns the output ports taken on the way to the device.
func (n Node) RelativeAddress() []uint8 {
	return n.Target.RelativeAddress
}

// IsBranch returns true if the node is a branch device.
func (n Node) IsBranch() bool {
	return n.DeviceType == sideband.PeerBranch
}

func (n Node) String() string {
	kind := "sink"
	if n.IsBranch() {
		kind = "branch"
	}

	return fmt.Sprintf("%s %s %s", kind, n.Target, n.GUID)
}

// Arena stores the discovered nodes. The sink list refers to nodes by their
// index in the arena.
type Arena struct {
	nodes []Node
	sinks []int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		nodes: make([]Node, 0, MaxNodes),
	}
}

// Add inserts a node and returns its index.
func (a *Arena) Add(n Node) (int, error) {
	if len(a.nodes) >= MaxNodes {
		return 0, fmt.Errorf("%w: node table holds %d nodes, adding %s",
			dp.ErrCapacity, MaxNodes, n)
	}

	a.nodes = append(a.nodes, n)

	return len(a.nodes) - 1, nil
}

// AddSink inserts a node and appends it to the sink list.
func (a *Arena) AddSink(n Node) (int, error) {
	idx, err := a.Add(n)
	if err != nil {
		return 0, err
	}

	a.sinks = append(a.sinks, idx)

	return idx, nil
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// NumSinks returns the length of the sink list.
func (a *Arena) NumSinks() int {
	return len(a.sinks)
}

// Node returns the node at index i.
func (a *Arena) Node(i int) Node {
	return a.nodes[i]
}

// Sink returns the node at position i of the sink list.
func (a *Arena) Sink(i int) Node {
	return a.nodes[a.sinks[i]]
}

// Nodes returns a copy of the node table.
func (a *Arena) Nodes() []Node {
	return append([]Node(nil), a.nodes...)
}

// SinkIndices returns a copy of the sink list.
func (a *Arena) SinkIndices() []int {
	return append([]int(nil), a.sinks...)
}

// SwapSinks exchanges two entries of the sink list. The node table is left
// untouched.
func (a *Arena) SwapSinks(i, j int) {
	a.sinks[i], a.sinks[j] = a.sinks[j], a.sinks[i]
}

// Reset forgets every node.
func (a *Arena) Reset() {
	a.nodes = a.nodes[:0]
	a.sinks = a.sinks[:0]
}

// GUIDPoolSize is the number of GUIDs a manager can issue per discovery.
const GUIDPoolSize = 16

// GUIDPool hands out the GUIDs written to devices that report none.
type GUIDPool struct {
	next int
}

// PoolGUID returns entry i of the fixed GUID pool.
func PoolGUID(i int) sideband.GUID {
	g := sideband.GUID{'D', 'P', 'L', 'I', 'N', 'K', 0x00, 0x01}
	g[8] = 0x80
	g[14] = byte(i >> 8)
	g[15] = byte(i) + 1

	return g
}

// Next returns the next unused GUID.
func (p *GUIDPool) Next() (sideband.GUID, error) {
	if p.next >= GUIDPoolSize {
		return sideband.GUID{}, fmt.Errorf("%w: all %d GUIDs issued",
			dp.ErrCapacity, GUIDPoolSize)
	}

	g := PoolGUID(p.next)
	p.next++

	return g, nil
}

// Issued returns how many GUIDs have been handed out.
func (p *GUIDPool) Issued() int {
	return p.next
}

// Reset makes every GUID available again.
func (p *GUIDPool) Reset() {
	p.next = 0
}
