// Package schedule loads, saves and watches the class timetable file.
package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/classbell/internal/model"
)

// SchemaVersion is the current timetable file schema version.
const SchemaVersion = 1

// LoadError is returned when the timetable cannot be read, parsed or validated.
// No partial schedule is ever returned alongside it.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load schedule %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// fileFormat is the on-disk layout.
type fileFormat struct {
	SchemaVersion int           `json:"schema_version" yaml:"schema_version"`
	Classes       []model.Entry `json:"classes" yaml:"classes"`
}

// legacyFormat is the layout written by earlier class bell tools.
type legacyFormat struct {
	ClassList []legacyEntry `json:"class_list" yaml:"class_list"`
}

type legacyEntry struct {
	ClassName    string `json:"class_name" yaml:"class_name"`
	ClassTeacher string `json:"class_teacher" yaml:"class_teacher"`
	ClassHour    int    `json:"class_hour" yaml:"class_hour"`
	ClassMinute  int    `json:"class_minute" yaml:"class_minute"`
	ClassWeekday int    `json:"class_weekday" yaml:"class_weekday"`
}

// Store reads and writes a timetable file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a Store for path on the given filesystem.
// A nil fs uses the operating system filesystem.
func NewStore(fs afero.Fs, path string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, path: path}
}

// Path returns the timetable file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the timetable file is present.
func (s *Store) Exists() (bool, error) {
	return afero.Exists(s.fs, s.path)
}

// Load reads and validates the timetable.
func (s *Store) Load() (model.Schedule, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return model.Schedule{}, &LoadError{Path: s.path, Err: err}
	}

	sched, err := decode(data, isYAML(s.path))
	if err != nil {
		return model.Schedule{}, &LoadError{Path: s.path, Err: err}
	}

	if err := sched.Validate(); err != nil {
		return model.Schedule{}, &LoadError{Path: s.path, Err: err}
	}

	return sched, nil
}

// Save replaces the timetable file with sched.
// Any existing file is removed first, then the new content is written.
func (s *Store) Save(sched model.Schedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid schedule: %w", err)
	}

	data, err := encode(sched, isYAML(s.path))
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove old schedule %s: %w", s.path, err)
	}

	if err := afero.WriteFile(s.fs, s.path, data, 0644); err != nil {
		return fmt.Errorf("write schedule %s: %w", s.path, err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Decode parses a timetable document that did not come from a file, such as
// stdin. JSON is detected by a leading '{'; anything else is read as YAML.
// The result is validated.
func Decode(data []byte) (model.Schedule, error) {
	trimmed := bytes.TrimSpace(data)
	sched, err := decode(trimmed, !bytes.HasPrefix(trimmed, []byte("{")))
	if err != nil {
		return model.Schedule{}, err
	}
	if err := sched.Validate(); err != nil {
		return model.Schedule{}, err
	}
	return sched, nil
}

func decode(data []byte, asYAML bool) (model.Schedule, error) {
	unmarshal := json.Unmarshal
	if asYAML {
		unmarshal = yaml.Unmarshal
	}

	// Only presence matters here; the full decode follows.
	var p struct {
		SchemaVersion *int `json:"schema_version" yaml:"schema_version"`
		Classes       any  `json:"classes" yaml:"classes"`
		ClassList     any  `json:"class_list" yaml:"class_list"`
	}
	if err := unmarshal(data, &p); err != nil {
		return model.Schedule{}, fmt.Errorf("parse: %w", err)
	}

	if p.ClassList != nil && p.Classes == nil {
		var legacy legacyFormat
		if err := unmarshal(data, &legacy); err != nil {
			return model.Schedule{}, fmt.Errorf("parse legacy layout: %w", err)
		}
		sched := model.Schedule{Classes: make([]model.Entry, 0, len(legacy.ClassList))}
		for _, le := range legacy.ClassList {
			sched.Classes = append(sched.Classes, model.Entry{
				Name:    le.ClassName,
				Teacher: le.ClassTeacher,
				Hour:    le.ClassHour,
				Minute:  le.ClassMinute,
				Weekday: le.ClassWeekday,
			})
		}
		return sched, nil
	}

	if p.SchemaVersion != nil && *p.SchemaVersion > SchemaVersion {
		return model.Schedule{}, fmt.Errorf("unsupported schema version %d (max: %d)",
			*p.SchemaVersion, SchemaVersion)
	}

	var f fileFormat
	if err := unmarshal(data, &f); err != nil {
		return model.Schedule{}, fmt.Errorf("parse: %w", err)
	}
	if f.Classes == nil {
		f.Classes = []model.Entry{}
	}
	return model.Schedule{Classes: f.Classes}, nil
}

func encode(sched model.Schedule, asYAML bool) ([]byte, error) {
	classes := sched.Classes
	if classes == nil {
		classes = []model.Entry{}
	}
	f := fileFormat{SchemaVersion: SchemaVersion, Classes: classes}
	if asYAML {
		return yaml.Marshal(f)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
