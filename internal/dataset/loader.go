package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/mspdash/internal/model"
)

// ErrDataFileMissing signals that the backing CSV is absent at load time.
// It is the only loader failure callers are expected to branch on.
var ErrDataFileMissing = eris.New("dataset: data file missing")

// Loader reads the company CSV once per process lifetime and serves the
// cached records to every caller. Concurrent first access is collapsed into
// a single file read; Invalidate forces the next Load to re-read.
type Loader struct {
	path string

	group singleflight.Group

	mu      sync.RWMutex
	records []model.CompanyRecord
	loaded  bool
}

// NewLoader creates a loader for the CSV at path. Nothing is read until the
// first Load call.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load returns the normalized records in file order. The first call reads
// the file; later calls return the cached slice. Callers must treat the
// returned slice as read-only.
func (l *Loader) Load() ([]model.CompanyRecord, error) {
	l.mu.RLock()
	if l.loaded {
		records := l.records
		l.mu.RUnlock()
		return records, nil
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do("load", func() (any, error) {
		// A concurrent caller may have populated the cache while we
		// waited on the flight group.
		l.mu.RLock()
		if l.loaded {
			records := l.records
			l.mu.RUnlock()
			return records, nil
		}
		l.mu.RUnlock()

		records, err := l.read()
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.records = records
		l.loaded = true
		l.mu.Unlock()

		zap.L().Info("dataset loaded",
			zap.String("path", l.path),
			zap.Int("records", len(records)),
		)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.CompanyRecord), nil
}

// Invalidate drops the cache so the next Load re-reads the file.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.records = nil
	l.loaded = false
	l.mu.Unlock()
}

func (l *Loader) read() ([]model.CompanyRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(ErrDataFileMissing, "path %s", l.path)
		}
		return nil, eris.Wrap(err, "dataset: open csv")
	}
	defer f.Close()

	// The export tool emits UTF-8 with an optional BOM.
	reader := csv.NewReader(transform.NewReader(f, unicode.UTF8BOM.NewDecoder()))
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []model.CompanyRecord{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read header")
	}

	records := make([]model.CompanyRecord, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read row")
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		records = append(records, NormalizeRow(row))
	}
	return records, nil
}
