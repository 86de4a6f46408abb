package topology

import (
	"fmt"

	"github.com/sarchlab/dplink/sideband"
)

// RemoteDpcdRead fills buf from the DPCD of the device at t. The directly
// attached device is read over AUX. Other devices are read with
// REMOTE_DPCD_READ in chunks of at most 16 bytes.
func (m *Manager) RemoteDpcdRead(t sideband.Target, addr uint32, buf []byte) error {
	if t.LinkCountTotal <= 1 {
		return m.channel.Read(addr, buf)
	}

	for done := 0; done < len(buf); {
		n := min(remoteChunkSize, len(buf)-done)

		h, body, err := sideband.RemoteDpcdReadRequest(t, addr+uint32(done), n)
		if err != nil {
			return err
		}

		data, err := m.transactRead(h, body, n)
		if err != nil {
			return fmt.Errorf("%s of 0x%05X at %s: %w",
				sideband.RemoteDpcdRead, addr+uint32(done), t, err)
		}

		copy(buf[done:], data)
		done += n
	}

	return nil
}

// RemoteDpcdWrite writes data to the DPCD of the device at t.
func (m *Manager) RemoteDpcdWrite(t sideband.Target, addr uint32, data []byte) error {
	if t.LinkCountTotal <= 1 {
		return m.channel.Write(addr, data)
	}

	for done := 0; done < len(data); {
		n := min(remoteChunkSize, len(data)-done)

		h, body, err := sideband.RemoteDpcdWriteRequest(
			t, addr+uint32(done), data[done:done+n])
		if err != nil {
			return err
		}

		if _, err := m.messenger.Transact(h, body); err != nil {
			return fmt.Errorf("%s of 0x%05X at %s: %w",
				sideband.RemoteDpcdWrite, addr+uint32(done), t, err)
		}

		done += n
	}

	return nil
}

// RemoteI2CRead fills buf from the I2C device dev behind the device at t,
// starting at offset. Offsets past 255 select E-DDC segments through the
// segment pointer, which is reset to 0 afterwards.
func (m *Manager) RemoteI2CRead(
	t sideband.Target,
	dev uint8,
	offset uint16,
	buf []byte,
) error {
	if t.LinkCountTotal <= 1 {
		return m.channel.I2CRead(dev, offset, buf)
	}

	segment := uint8(offset / 256)
	off := int(offset % 256)

	if err := m.RemoteI2CWrite(t, segmentPointer, []byte{segment}); err != nil {
		return err
	}

	for done := 0; done < len(buf); {
		if off == 256 {
			segment++
			off = 0

			err := m.RemoteI2CWrite(t, segmentPointer, []byte{segment})
			if err != nil {
				return err
			}
		}

		n := min(remoteChunkSize, len(buf)-done, 256-off)

		h, body, err := sideband.RemoteI2CReadRequest(t, dev, uint8(off), n)
		if err != nil {
			return err
		}

		data, err := m.transactRead(h, body, n)
		if err != nil {
			return fmt.Errorf("%s of 0x%02X:%d at %s: %w",
				sideband.RemoteI2CRead, dev, int(segment)*256+off, t, err)
		}

		copy(buf[done:], data)
		done += n
		off += n
	}

	return m.RemoteI2CWrite(t, segmentPointer, []byte{0})
}

// RemoteI2CWrite writes data to the I2C device dev behind the device at t,
// in REMOTE_I2C_WRITE requests of at most 16 bytes.
func (m *Manager) RemoteI2CWrite(t sideband.Target, dev uint8, data []byte) error {
	if t.LinkCountTotal <= 1 {
		return m.channel.I2CWrite(dev, data)
	}

	for done := 0; done < len(data); {
		n := min(remoteChunkSize, len(data)-done)

		h, body, err := sideband.RemoteI2CWriteRequest(t, dev, data[done:done+n])
		if err != nil {
			return err
		}

		if _, err := m.messenger.Transact(h, body); err != nil {
			return fmt.Errorf("%s to 0x%02X at %s: %w",
				sideband.RemoteI2CWrite, dev, t, err)
		}

		done += n
	}

	return nil
}

// EnumPathResources asks for the full and available payload bandwidth of
// the port leading to t.
func (m *Manager) EnumPathResources(t sideband.Target) (sideband.PathResources, error) {
	h, body, err := sideband.EnumPathResourcesRequest(t)
	if err != nil {
		return sideband.PathResources{}, err
	}

	reply, err := m.messenger.Transact(h, body)
	if err != nil {
		return sideband.PathResources{}, fmt.Errorf("%s at %s: %w",
			sideband.EnumPathResources, t, err)
	}

	return sideband.ParsePathResources(reply)
}

// AllocatePayloadSideband reserves pbn on the path to t for vcID. A pbn of 0
// releases the reservation.
func (m *Manager) AllocatePayloadSideband(
	t sideband.Target,
	vcID uint8,
	pbn uint16,
) error {
	h, body, err := sideband.AllocatePayloadRequest(t, vcID, pbn)
	if err != nil {
		return err
	}

	if _, err := m.messenger.Transact(h, body); err != nil {
		return fmt.Errorf("%s of %d PBN for VC %d at %s: %w",
			sideband.AllocatePayload, pbn, vcID, t, err)
	}

	return nil
}

func (m *Manager) transactRead(h sideband.Header, body []byte, n int) ([]byte, error) {
	reply, err := m.messenger.Transact(h, body)
	if err != nil {
		return nil, err
	}

	return sideband.ParseReadReply(reply, n)
}
