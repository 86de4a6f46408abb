package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/simulation"
)

// Topology describes a simulated bench: the directly attached sink and,
// optionally, the MST tree behind it.
type Topology struct {
	Sink   SinkSpec    `yaml:"sink"`
	Branch *BranchSpec `yaml:"branch,omitempty"`
}

// SinkSpec describes the directly attached sink.
type SinkSpec struct {
	DPCDRev     uint8     `yaml:"dpcd_rev,omitempty"`
	MaxLinkRate string    `yaml:"max_link_rate,omitempty"`
	MaxLanes    int       `yaml:"max_lanes,omitempty"`
	TPS3        *bool     `yaml:"tps3,omitempty"`
	TPS4        bool      `yaml:"tps4,omitempty"`
	Link        LinkSpec  `yaml:"link,omitempty"`
	EDID        *EDIDSpec `yaml:"edid,omitempty"`
}

// LinkSpec selects the training behavior of the sink. Kind is one of
// "ideal", "dead", "limited" and "drive".
type LinkSpec struct {
	Kind        string `yaml:"kind,omitempty"`
	MaxLinkRate string `yaml:"max_link_rate,omitempty"`
	MaxLanes    int    `yaml:"max_lanes,omitempty"`
	MinSwing    uint8  `yaml:"min_swing,omitempty"`
}

// EDIDSpec describes the EDID of a sink.
type EDIDSpec struct {
	Product uint16    `yaml:"product"`
	Serial  uint32    `yaml:"serial"`
	Tile    *TileSpec `yaml:"tile,omitempty"`
}

// TileSpec places a sink inside a tiled display.
type TileSpec struct {
	Columns uint8 `yaml:"columns"`
	Rows    uint8 `yaml:"rows"`
	Column  uint8 `yaml:"column"`
	Row     uint8 `yaml:"row"`
}

// BranchSpec describes an MST branch device.
type BranchSpec struct {
	Ports []PortSpec `yaml:"ports"`
}

// PortSpec describes one output port of a branch. At most one of Sink and
// Branch is set; a port with neither is left out.
type PortSpec struct {
	Number    uint8           `yaml:"number"`
	Unplugged bool            `yaml:"unplugged,omitempty"`
	FullPBN   uint16          `yaml:"full_pbn,omitempty"`
	Sink      *RemoteSinkSpec `yaml:"sink,omitempty"`
	Branch    *BranchSpec     `yaml:"branch,omitempty"`
}

// RemoteSinkSpec describes a sink attached to a branch port.
type RemoteSinkSpec struct {
	MsgCapable bool      `yaml:"msg_capable,omitempty"`
	EDID       *EDIDSpec `yaml:"edid,omitempty"`
}

// LoadTopology reads a topology description from a YAML file.
func LoadTopology(path string) (Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, err
	}

	return ParseTopology(data)
}

// ParseTopology decodes a YAML topology description. Unknown keys are
// rejected.
func ParseTopology(data []byte) (Topology, error) {
	var t Topology

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&t); err != nil {
		return Topology{}, fmt.Errorf("%w: topology: %v",
			dp.ErrInvalidArgument, err)
	}

	return t, nil
}

// Marshal encodes the topology as YAML.
func (t Topology) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}

// Build creates the simulation described by the topology.
func (t Topology) Build() (*simulation.Simulation, error) {
	cfg, err := t.Sink.config()
	if err != nil {
		return nil, err
	}

	b := simulation.MakeBuilder().WithSinkConfig(cfg)

	if t.Branch != nil {
		root, err := t.Branch.build(1)
		if err != nil {
			return nil, err
		}

		b = b.WithBranch(root)
	}

	return b.Build()
}

func (s SinkSpec) config() (simulation.SinkConfig, error) {
	cfg := simulation.DefaultSinkConfig()

	if s.DPCDRev != 0 {
		cfg.DPCDRev = s.DPCDRev
	}

	if s.MaxLinkRate != "" {
		r, err := dp.ParseLinkRate(s.MaxLinkRate)
		if err != nil {
			return cfg, err
		}

		cfg.MaxLinkRate = r
	}

	if s.MaxLanes != 0 {
		cfg.MaxLaneCount = s.MaxLanes
	}

	if s.TPS3 != nil {
		cfg.TPS3 = *s.TPS3
	}

	cfg.TPS4 = s.TPS4

	link, err := s.Link.behavior()
	if err != nil {
		return cfg, err
	}

	cfg.Link = link

	if s.EDID != nil {
		cfg.EDID = s.EDID.build()
	}

	return cfg, nil
}

func (l LinkSpec) behavior() (simulation.LinkBehavior, error) {
	switch l.Kind {
	case "", "ideal":
		return simulation.IdealLink{}, nil
	case "dead":
		return simulation.DeadLink{}, nil
	case "drive":
		return simulation.DriveLevelLink{
			MinSwing:     l.MinSwing,
			RequestSwing: l.MinSwing,
		}, nil
	case "limited":
		limited := simulation.LimitedLink{
			MaxRate:  dp.LinkRate810,
			MaxLanes: 4,
		}
		if l.MaxLanes != 0 {
			limited.MaxLanes = l.MaxLanes
		}

		if l.MaxLinkRate != "" {
			r, err := dp.ParseLinkRate(l.MaxLinkRate)
			if err != nil {
				return nil, err
			}

			limited.MaxRate = r
		}

		return limited, nil
	}

	return nil, fmt.Errorf("%w: unknown link kind %q",
		dp.ErrInvalidArgument, l.Kind)
}

func (e EDIDSpec) build() []byte {
	var tile *dp.TiledDisplay
	if e.Tile != nil {
		tile = &dp.TiledDisplay{
			Vendor:             [3]byte{'D', 'P', 'L'},
			Product:            e.Product,
			Serial:             e.Serial,
			HorizontalTiles:    e.Tile.Columns,
			VerticalTiles:      e.Tile.Rows,
			HorizontalLocation: e.Tile.Column,
			VerticalLocation:   e.Tile.Row,
		}
	}

	return simulation.EDID(e.Product, e.Serial, tile)
}

func (b BranchSpec) build(depth int) (*simulation.Branch, error) {
	if depth > 15 {
		return nil, fmt.Errorf("%w: topology deeper than 15 links",
			dp.ErrInvalidArgument)
	}

	branch := simulation.NewBranch()
	seen := make(map[uint8]bool)

	for _, p := range b.Ports {
		if p.Number == 0 || p.Number > 15 || seen[p.Number] {
			return nil, fmt.Errorf("%w: bad or repeated port number %d",
				dp.ErrInvalidArgument, p.Number)
		}

		seen[p.Number] = true

		port, err := p.attach(branch, depth)
		if err != nil {
			return nil, err
		}

		if port == nil {
			continue
		}

		port.Unplugged = p.Unplugged
		if p.FullPBN != 0 {
			port.FullPBN = p.FullPBN
			port.AvailablePBN = p.FullPBN
		}
	}

	return branch, nil
}

func (p PortSpec) attach(
	branch *simulation.Branch,
	depth int,
) (*simulation.Port, error) {
	switch {
	case p.Sink != nil && p.Branch != nil:
		return nil, fmt.Errorf("%w: port %d has both a sink and a branch",
			dp.ErrInvalidArgument, p.Number)
	case p.Branch != nil:
		child, err := p.Branch.build(depth + 1)
		if err != nil {
			return nil, err
		}

		return branch.AddBranch(p.Number, child), nil
	case p.Sink != nil:
		var edid []byte
		if p.Sink.EDID != nil {
			edid = p.Sink.EDID.build()
		}

		s := simulation.NewRemoteSink(edid)
		s.MsgCapable = p.Sink.MsgCapable

		return branch.AddSink(p.Number, s), nil
	}

	return nil, nil
}
