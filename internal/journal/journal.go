// Package journal implements model.CommandJournal as an append-only JSONL
// file, generalized from the teacher's internal/execution Journal (a
// SQLite trade log). A command audit trail has none of the trade
// journal's query needs (no GetTrades-style lookups, no indexes), so the
// underlying store drops SQLite for a flat append-only file, the shape
// other_examples' and the pack's logging conventions use for structured
// records that are read back by tooling, not by the program itself.
package journal

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/roboticsmick/ORCA-open-spectrometer-sub000/internal/model"
)

// Journal appends one JSON object per accepted command to a file.
type Journal struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	log *slog.Logger
}

// record is the on-disk shape of one journal entry.
type record struct {
	TS                string               `json:"ts"`
	Kind              model.CommandKind    `json:"kind"`
	IntegrationTimeMS int                  `json:"integration_time_ms,omitempty"`
	ScansToAverage    int                  `json:"scans_to_average,omitempty"`
	CollectionMode    model.CollectionMode `json:"collection_mode,omitempty"`
	TestIntegrationUS int                  `json:"test_integration_us,omitempty"`
}

// Open opens (creating if needed) the journal file at path for appending.
func Open(path string, log *slog.Logger) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{f: f, enc: json.NewEncoder(f), log: log}, nil
}

// Record appends cmd to the journal. Per model.CommandJournal, write
// failures are logged, not returned: a full disk must never stall the
// acquisition engine's command loop.
func (j *Journal) Record(cmd model.Command) {
	j.mu.Lock()
	defer j.mu.Unlock()

	r := record{
		TS:                time.Now().UTC().Format(time.RFC3339Nano),
		Kind:              cmd.Kind,
		IntegrationTimeMS: cmd.IntegrationTimeMS,
		ScansToAverage:    cmd.ScansToAverage,
		CollectionMode:    cmd.CollectionMode,
		TestIntegrationUS: cmd.TestIntegrationUS,
	}
	if err := j.enc.Encode(r); err != nil {
		j.log.Error("journal: write failed", "err", err)
	}
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
