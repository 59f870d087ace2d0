package participant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// accountState is the JSON document persisted at DATA_PATH/state.json. Field
// names are part of the on-disk contract; do not rename without a migration.
type accountState struct {
	Account  string           `json:"account"`
	Balance  int64            `json:"balance"`
	Holds    map[string]int64 `json:"holds"`
	Pendings map[string]int64 `json:"pendings"`
}

func newAccountState(account string, initialBalance int64) *accountState {
	return &accountState{
		Account:  account,
		Balance:  initialBalance,
		Holds:    make(map[string]int64),
		Pendings: make(map[string]int64),
	}
}

// loadOrCreateState reads DATA_PATH/state.json, creating it (and DATA_PATH)
// with the seeded initial balance if it does not already exist. The initial
// balance is only ever consulted on first start, matching the source
// behaviour: a restart never re-seeds an existing state file.
func loadOrCreateState(dataPath, account string, initialBalance int64) (*accountState, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}

	statePath := filepath.Join(dataPath, "state.json")
	data, err := os.ReadFile(statePath)
	if os.IsNotExist(err) {
		st := newAccountState(account, initialBalance)
		if err := writeStateFile(statePath, st); err != nil {
			return nil, fmt.Errorf("seed initial state: %w", err)
		}
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st accountState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if st.Holds == nil {
		st.Holds = make(map[string]int64)
	}
	if st.Pendings == nil {
		st.Pendings = make(map[string]int64)
	}
	return &st, nil
}

// writeStateFile durably persists st via a staged rename: write to a sibling
// temp file, fsync it, then atomically replace the real path. A crash can
// never observe a torn or partially-written state.json.
func writeStateFile(statePath string, st *accountState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := statePath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp state file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, statePath); err != nil {
		return fmt.Errorf("rename temp state file: %w", err)
	}
	return nil
}
