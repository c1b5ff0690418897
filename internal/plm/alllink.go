package plm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// ALL-Link record flag bits.
const (
	recordInUse      byte = 0x80
	recordController byte = 0x40
)

// AllLinkRecord is one entry of the modem's ALL-Link database.
type AllLinkRecord struct {
	Flags   byte
	Group   int
	Address insteon.InsteonAddress
	Data    [3]byte
}

// InUse reports whether the record is active.
func (r AllLinkRecord) InUse() bool { return r.Flags&recordInUse != 0 }

// IsController reports whether the modem controls the linked device.
func (r AllLinkRecord) IsController() bool { return r.Flags&recordController != 0 }

// parseAllLinkRecord decodes a 0x57 frame:
//
//	0x02 0x57 flags group ID1 ID2 ID3 data1 data2 data3
func parseAllLinkRecord(frame []byte) (AllLinkRecord, error) {
	if len(frame) != frameLengths[insteon.CmdAllLinkRecord] || frame[1] != insteon.CmdAllLinkRecord {
		return AllLinkRecord{}, fmt.Errorf("%w: ALL-Link record % X", ErrInvalidFrame, frame)
	}
	rec := AllLinkRecord{Flags: frame[2], Group: int(frame[3])}
	copy(rec.Address[:], frame[4:7])
	copy(rec.Data[:], frame[7:10])
	return rec, nil
}

// AllLinkRecords reads the modem's whole ALL-Link database: get-first, then
// get-next until the modem NAKs the echoed request. A bare busy NAK is not the
// end of the database; the request is retried after BusyRetryDelay.
func (m *Modem) AllLinkRecords(ctx context.Context) ([]AllLinkRecord, error) {
	m.dbMu.Lock()
	defer m.dbMu.Unlock()

	m.walking.Store(true)
	defer m.walking.Store(false)

drain:
	for {
		select {
		case <-m.records:
		default:
			break drain
		}
	}

	var records []AllLinkRecord
	cmd := insteon.CmdGetFirstAllLink
	for {
		err := m.allLinkRequest(ctx, cmd)
		if errors.Is(err, ErrNAK) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading ALL-Link database: %w", err)
		}

		rec, err := m.nextRecord(ctx)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		cmd = insteon.CmdGetNextAllLink
	}
}

// allLinkRequest sends a get-first or get-next, retrying while the modem
// reports busy.
func (m *Modem) allLinkRequest(ctx context.Context, cmd byte) error {
	for attempt := 0; ; attempt++ {
		_, err := m.exchange(ctx, []byte{insteon.FrameStart, cmd})
		if !errors.Is(err, ErrBusy) || attempt == maxBusyRetries {
			return err
		}

		m.logDebug("modem busy, retrying ALL-Link read", "cmd", fmt.Sprintf("0x%02X", cmd), "attempt", attempt+1)
		timer := time.NewTimer(m.opts.BusyRetryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.done.Done():
			timer.Stop()
			return ErrNotConnected
		}
	}
}

// nextRecord waits for the 0x57 frame that follows an acknowledged get.
func (m *Modem) nextRecord(ctx context.Context) (AllLinkRecord, error) {
	timer := time.NewTimer(m.opts.AckTimeout)
	defer timer.Stop()

	select {
	case frame := <-m.records:
		return parseAllLinkRecord(frame)
	case <-timer.C:
		return AllLinkRecord{}, fmt.Errorf("%w: ALL-Link record", ErrTimeout)
	case <-ctx.Done():
		return AllLinkRecord{}, ctx.Err()
	case <-m.done.Done():
		return AllLinkRecord{}, ErrNotConnected
	}
}

// sceneMembers returns the responders the modem controls in group, in
// database order without duplicates.
func sceneMembers(records []AllLinkRecord, group int) []insteon.InsteonAddress {
	seen := make(map[insteon.InsteonAddress]bool)
	members := []insteon.InsteonAddress{}
	for _, r := range records {
		if !r.InUse() || !r.IsController() || r.Group != group || seen[r.Address] {
			continue
		}
		seen[r.Address] = true
		members = append(members, r.Address)
	}
	return members
}

// sceneWorker processes queued scene refreshes in order.
func (m *Modem) sceneWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done.Done():
			return
		case group := <-m.scenes:
			m.refreshGroup(group)
		}
	}
}

func (m *Modem) refreshGroup(group int) {
	ctx, cancel := context.WithTimeout(m.ctx, m.opts.RefreshTimeout)
	defer cancel()

	records, err := m.AllLinkRecords(ctx)
	if err != nil {
		m.logError("scene refresh failed", fmt.Errorf("group %d: %w", group, err))
		return
	}

	members := sceneMembers(records, group)
	m.logDebug("scene refreshed", "group", group, "members", len(members))

	m.callbackMu.RLock()
	callback := m.onSceneMembers
	m.callbackMu.RUnlock()

	if callback != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logError("scene callback panic", fmt.Errorf("%v", r))
				}
			}()
			callback(group, members)
		}()
	}
}
