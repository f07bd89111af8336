// Package session persists browser session snapshots and schedules the
// auto-save job that keeps them current.
package session

import (
	"fmt"
	"time"

	"browserd/browser"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is one persisted session: the full tab set plus selection at the
// moment of the save. Snapshots are whole-state, last-write-wins.
type Snapshot struct {
	Tabs          []browser.Tab `msgpack:"tabs"`
	SelectedTabID string        `msgpack:"selected_tab_id"`
	SavedAt       time.Time     `msgpack:"saved_at"`
}

// SnapshotFromState captures the given state as a snapshot.
func SnapshotFromState(state browser.State) Snapshot {
	return Snapshot{
		Tabs:          state.Tabs,
		SelectedTabID: state.SelectedTabID,
		SavedAt:       time.Now().UTC(),
	}
}

// Encode serializes the snapshot to msgpack.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot deserializes a snapshot from msgpack.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}
