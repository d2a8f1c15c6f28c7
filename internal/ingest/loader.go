package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"cardioingest/internal/blob"
	"cardioingest/internal/logging"
)

// maxSampleBytes caps a single raw sample document.
const maxSampleBytes = 8 << 20

// Loader reads raw sample documents from the input bucket. Objects live at
// prefix + filename + ".json".
type Loader struct {
	store  blob.Store
	prefix string
	log    logging.Logger
}

// NewLoader builds a Loader over store. A nil logger discards output.
func NewLoader(store blob.Store, prefix string, log logging.Logger) *Loader {
	if log == nil {
		log = logging.Nop()
	}
	return &Loader{store: store, prefix: prefix, log: log}
}

// Prefix returns the key prefix all samples live under.
func (l *Loader) Prefix() string { return l.prefix }

// Key maps a filename to its object key.
func (l *Loader) Key(filename string) string { return l.prefix + filename + ".json" }

// Load fetches the document for filename and checks it is well-formed JSON.
func (l *Loader) Load(ctx context.Context, filename string) ([]byte, error) {
	key := l.Key(filename)
	l.log.Info("loading raw sample", "driver", string(l.store.Driver()), "key", key)

	_, rc, err := l.store.Get(ctx, key)
	if err != nil {
		l.log.Error("raw sample read error", "key", key, "error", err)
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxSampleBytes+1))
	if err != nil {
		l.log.Error("raw sample read error", "key", key, "error", err)
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) > maxSampleBytes {
		return nil, fmt.Errorf("read %s: document exceeds %d bytes", key, maxSampleBytes)
	}
	if !json.Valid(data) {
		l.log.Error("invalid json format", "key", key)
		return nil, fmt.Errorf("%s: %w", key, ErrInvalidJSON)
	}
	l.log.Info("raw sample loaded", "key", key, "bytes", len(data))
	return data, nil
}
