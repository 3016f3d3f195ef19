package schedule

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/classbell/internal/model"
)

func sampleSchedule() model.Schedule {
	return model.Schedule{Classes: []model.Entry{
		{Name: "Maths", Teacher: "Ms Smith", Hour: 8, Minute: 30, Weekday: model.Monday},
		{Name: "History", Teacher: "Mr Jones", Hour: 9, Minute: 0, Weekday: model.Wednesday},
		{Name: "Art", Teacher: "", Hour: 14, Minute: 15, Weekday: model.Friday},
	}}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	for _, path := range []string{"/data/class_table.json", "/data/class_table.yaml", "/data/class_table.yml"} {
		t.Run(path, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			s := NewStore(fs, path)

			want := sampleSchedule()
			require.NoError(t, s.Save(want))

			got, err := s.Load()
			require.NoError(t, err)
			assert.Equal(t, want.Classes, got.Classes)
		})
	}
}

func TestStore_SaveReplacesExistingContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "/data/class_table.json")

	require.NoError(t, s.Save(sampleSchedule()))

	smaller := model.Schedule{Classes: []model.Entry{
		{Name: "PE", Teacher: "Coach", Hour: 10, Minute: 0, Weekday: model.Tuesday},
	}}
	require.NoError(t, s.Save(smaller))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, smaller.Classes, got.Classes)

	data, err := afero.ReadFile(fs, "/data/class_table.json")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Maths")
	assert.Contains(t, string(data), `"schema_version": 1`)
}

func TestStore_SaveEmptySchedule(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "/data/class_table.json")

	require.NoError(t, s.Save(model.Schedule{}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestStore_SaveRejectsInvalidEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "/data/class_table.json")

	err := s.Save(model.Schedule{Classes: []model.Entry{{Name: "Late", Hour: 24}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidHour))

	exists, err := s.Exists()
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := NewStore(afero.NewMemMapFs(), "/data/missing.json")

	_, err := s.Load()
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "/data/missing.json", loadErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"classes": [`},
		{"wrong field type", `{"classes": [{"name": "Maths", "hour": "eight"}]}`},
		{"invalid weekday", `{"classes": [{"name": "Maths", "hour": 8, "minute": 30, "weekday": 7}]}`},
		{"invalid minute", `{"classes": [{"name": "Maths", "hour": 8, "minute": 60, "weekday": 0}]}`},
		{"empty name", `{"classes": [{"name": "", "hour": 8, "minute": 30, "weekday": 0}]}`},
		{"future schema", `{"schema_version": 9, "classes": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/t.json", []byte(tt.content), 0644))

			got, err := NewStore(fs, "/t.json").Load()
			require.Error(t, err)

			var loadErr *LoadError
			assert.True(t, errors.As(err, &loadErr))
			assert.Equal(t, 0, got.Len(), "no partial schedule on error")
		})
	}
}

func TestStore_LoadLegacyLayout(t *testing.T) {
	content := `{
  "class_list": [
    {"class_name": "Maths", "class_teacher": "Ms Smith", "class_hour": 8, "class_minute": 30, "class_weekday": 0},
    {"class_name": "History", "class_teacher": "Mr Jones", "class_hour": 9, "class_minute": 0, "class_weekday": 2}
  ]
}`
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/legacy.json", []byte(content), 0644))

	got, err := NewStore(fs, "/legacy.json").Load()
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, model.Entry{Name: "Maths", Teacher: "Ms Smith", Hour: 8, Minute: 30, Weekday: 0}, got.Classes[0])
	assert.Equal(t, model.Entry{Name: "History", Teacher: "Mr Jones", Hour: 9, Minute: 0, Weekday: 2}, got.Classes[1])
}

func TestStore_LoadYAML(t *testing.T) {
	content := `schema_version: 1
classes:
  - name: Maths
    teacher: Ms Smith
    hour: 8
    minute: 30
    weekday: 0
`
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/t.yaml", []byte(content), 0644))

	got, err := NewStore(fs, "/t.yaml").Load()
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "Ms Smith", got.Classes[0].Teacher)
}

func TestStore_SavedYAMLIsYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "/t.yaml")
	require.NoError(t, s.Save(sampleSchedule()))

	data, err := afero.ReadFile(fs, "/t.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "schema_version: 1"))
}

func TestStore_Exists(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "/data/class_table.json")

	exists, err := s.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Save(sampleSchedule()))

	exists, err = s.Exists()
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "/data/class_table.json", s.Path())
}

func TestDecode(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		sched, err := Decode([]byte(`
  {"schema_version": 1, "classes": [{"name": "Maths", "teacher": "Ms Smith", "hour": 8, "minute": 30, "weekday": 0}]}`))
		require.NoError(t, err)
		require.Len(t, sched.Classes, 1)
		assert.Equal(t, "Maths", sched.Classes[0].Name)
	})

	t.Run("yaml", func(t *testing.T) {
		sched, err := Decode([]byte("classes:\n  - name: Art\n    hour: 14\n    minute: 45\n    weekday: 4\n"))
		require.NoError(t, err)
		require.Len(t, sched.Classes, 1)
		assert.Equal(t, 14, sched.Classes[0].Hour)
	})

	t.Run("legacy json", func(t *testing.T) {
		sched, err := Decode([]byte(`{"class_list": [{"class_name": "History", "class_teacher": "Mr Jones", "class_hour": 9, "class_minute": 0, "class_weekday": 2}]}`))
		require.NoError(t, err)
		require.Len(t, sched.Classes, 1)
		assert.Equal(t, "Mr Jones", sched.Classes[0].Teacher)
	})

	t.Run("invalid entry", func(t *testing.T) {
		_, err := Decode([]byte(`{"classes": [{"name": "Maths", "hour": 25}]}`))
		assert.ErrorIs(t, err, model.ErrInvalidHour)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Decode([]byte(`{not json`))
		assert.Error(t, err)
	})
}
