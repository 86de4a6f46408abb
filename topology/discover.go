package topology

import (
	"errors"
	"fmt"

	"github.com/sarchlab/dplink/dp"
	"github.com/sarchlab/dplink/sideband"
)

// Discover rebuilds the topology by walking the tree from the root branch
// with LINK_ADDRESS. Devices without a GUID are given one from the pool.
// A failure below one branch does not stop the walk of its siblings; all
// failures are joined into the returned error.
func (m *Manager) Discover() error {
	m.nodes.Reset()
	m.guids.Reset()
	m.root = Node{}
	m.hasRoot = false

	err := m.discoverBranch(sideband.RootTarget)

	m.sink.TopologyDiscovered(m.nodes.Len(), m.nodes.NumSinks(), err)

	return err
}

func (m *Manager) discoverBranch(t sideband.Target) error {
	h, req := sideband.LinkAddressRequest(t)

	reply, err := m.messenger.Transact(h, req)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", sideband.LinkAddress, t, err)
	}

	info, err := sideband.ParseLinkAddressReply(reply)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", sideband.LinkAddress, t, err)
	}

	var errs []error

	branch := Node{
		GUID:       info.GUID,
		Target:     t,
		DeviceType: sideband.PeerBranch,
		DPCDRev:    0x12,
		MsgCapable: true,
	}

	if len(t.RelativeAddress) > 0 {
		branch.PortNumber = t.RelativeAddress[len(t.RelativeAddress)-1]
	}

	if err := m.ensureGUID(&branch); err != nil {
		errs = append(errs, err)
	}

	if t.LinkCountTotal == 1 {
		m.root = branch
		m.hasRoot = true
		m.addedNode(branch)
	} else if err := m.addNode(branch, false); err != nil {
		return errors.Join(append(errs, err)...)
	}

	var branches []sideband.Target

	for _, p := range info.Ports {
		if p.Input || !p.Plugged {
			continue
		}

		child := t.Child(p.PortNumber)

		if p.PeerDeviceType == sideband.PeerBranch {
			branches = append(branches, child)
			continue
		}

		if p.PeerDeviceType == sideband.PeerNone {
			continue
		}

		sink := Node{
			GUID:       p.GUID,
			Target:     child,
			DeviceType: p.PeerDeviceType,
			DPCDRev:    p.DPCDRev,
			MsgCapable: p.MsgCapable,
			PortNumber: p.PortNumber,
		}

		if sink.MsgCapable && sink.DPCDRev >= 0x12 {
			if err := m.ensureGUID(&sink); err != nil {
				errs = append(errs, err)
			}
		}

		if err := m.addNode(sink, true); err != nil {
			errs = append(errs, err)
		}
	}

	for _, b := range branches {
		if err := m.discoverBranch(b); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) ensureGUID(n *Node) error {
	if !n.GUID.IsZero() {
		return nil
	}

	g, err := m.guids.Next()
	if err != nil {
		return fmt.Errorf("GUID for %s: %w", n.Target, err)
	}

	if err := m.RemoteDpcdWrite(n.Target, dp.DpcdGUID, g[:]); err != nil {
		return fmt.Errorf("GUID for %s: %w", n.Target, err)
	}

	n.GUID = g

	return nil
}

func (m *Manager) addNode(n Node, sink bool) error {
	var err error
	if sink {
		_, err = m.nodes.AddSink(n)
	} else {
		_, err = m.nodes.Add(n)
	}

	if err != nil {
		return err
	}

	m.addedNode(n)

	return nil
}

func (m *Manager) addedNode(n Node) {
	m.InvokeHook(dp.HookCtx{
		Domain: m,
		Pos:    dp.HookPosTopologyNode,
		Item:   n,
	})
}
