package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/classbell/internal/model"
)

// SchemaVersion is the current persistence schema version.
const SchemaVersion = 1

// Persistence defines the interface for outcome history storage.
type Persistence interface {
	// Load reads all outcomes from storage.
	Load() ([]model.Outcome, error)

	// Append adds an outcome to storage.
	Append(o model.Outcome) error

	// Rewrite replaces the entire storage file (used after prune).
	Rewrite(outcomes []model.Outcome) error

	// Clear removes all stored outcomes.
	Clear() error

	// Close releases file handles and resources.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	ClassbellSchemaVersion int   `json:"classbell_schema_version"`
	CreatedAt              int64 `json:"created_at"`
}

// JSONLPersistence implements Persistence using JSONL files.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLPersistence creates a new JSONLPersistence.
// Creates the file if it doesn't exist.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	p := &JSONLPersistence{
		path: path,
		file: file,
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return p, nil
}

// Path returns the history file path.
func (p *JSONLPersistence) Path() string {
	return p.path
}

// writeHeader writes the schema version header to the file.
func (p *JSONLPersistence) writeHeader() error {
	header := schemaHeader{
		ClassbellSchemaVersion: SchemaVersion,
		CreatedAt:              time.Now().Unix(),
	}

	data, err := json.Marshal(header)
	if err != nil {
		return err
	}

	_, err = p.file.Write(append(data, '\n'))
	return err
}

// ErrPersistenceClosed is returned when operations are attempted on a closed persistence.
var ErrPersistenceClosed = errors.New("persistence is closed")

// Load reads all outcomes from storage. Malformed lines are skipped.
func (p *JSONLPersistence) Load() ([]model.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return nil, ErrPersistenceClosed
	}

	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", p.path, err)
	}

	outcomes, err := readOutcomes(p.file, true)

	// Seek back to end for appending
	if _, serr := p.file.Seek(0, io.SeekEnd); serr != nil && err == nil {
		err = serr
	}
	return outcomes, err
}

// readOutcomes scans JSONL records, checking the header version when strict.
func readOutcomes(r io.Reader, strict bool) ([]model.Outcome, error) {
	var outcomes []model.Outcome
	scanner := bufio.NewScanner(r)

	const maxLineSize = 1024 * 1024 // 1MB
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.ClassbellSchemaVersion > 0 {
				if strict && header.ClassbellSchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.ClassbellSchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var o model.Outcome
		if err := json.Unmarshal(line, &o); err != nil {
			continue
		}
		if o.ID != "" {
			outcomes = append(outcomes, o)
		}
	}

	if err := scanner.Err(); err != nil {
		return outcomes, fmt.Errorf("error reading file: %w", err)
	}
	return outcomes, nil
}

// Append adds an outcome to storage.
func (p *JSONLPersistence) Append(o model.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return ErrPersistenceClosed
	}

	data, err := json.Marshal(o)
	if err != nil {
		return err
	}

	if _, err := p.file.Write(append(data, '\n')); err != nil {
		return err
	}

	return p.file.Sync()
}

// Rewrite replaces the entire storage file (used after prune).
func (p *JSONLPersistence) Rewrite(outcomes []model.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}

	if err := p.replaceFile(); err != nil {
		return err
	}

	for _, o := range outcomes {
		data, err := json.Marshal(o)
		if err != nil {
			return err
		}
		if _, err := p.file.Write(append(data, '\n')); err != nil {
			return err
		}
	}

	if err := p.file.Sync(); err != nil {
		return err
	}

	os.Remove(p.path + ".bak")
	return nil
}

// Clear removes all stored outcomes.
func (p *JSONLPersistence) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}

	if err := p.replaceFile(); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return err
	}

	os.Remove(p.path + ".bak")
	return nil
}

// replaceFile moves the current file to a .bak backup and opens a fresh one
// with a header. The caller holds p.mu.
func (p *JSONLPersistence) replaceFile() error {
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return err
		}
		p.file = nil
	}

	backupPath := p.path + ".bak"
	if err := os.Rename(p.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		os.Rename(backupPath, p.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	p.file = file

	return p.writeHeader()
}

// Close releases file handles and resources.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

// RecoverFromCorruption rewrites path keeping only valid outcome lines.
// The original file is kept as path.corrupted.<timestamp>.
func RecoverFromCorruption(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	valid, _ := readOutcomes(file, false)
	file.Close()

	backupPath := path + ".corrupted." + time.Now().Format("20060102-150405")
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to backup corrupted file: %w", err)
	}

	p, err := NewJSONLPersistence(path)
	if err != nil {
		return err
	}
	defer p.Close()

	return p.Rewrite(valid)
}
