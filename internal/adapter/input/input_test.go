package input

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/classbell/internal/model"
)

func TestPrompter_Collect(t *testing.T) {
	answers := strings.Join([]string{
		"Maths", "Ms Smith", "08:30", "mon",
		"History", "", "9:00", "2",
		"",
	}, "\n") + "\n"
	var out bytes.Buffer

	sched, err := NewPrompter(strings.NewReader(answers), &out).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []model.Entry{
		{Name: "Maths", Teacher: "Ms Smith", Hour: 8, Minute: 30, Weekday: model.Monday},
		{Name: "History", Teacher: "", Hour: 9, Minute: 0, Weekday: model.Wednesday},
	}, sched.Classes)

	assert.Contains(t, out.String(), "Class 1 name: ")
	assert.Contains(t, out.String(), "Class 2 name: ")
	assert.Contains(t, out.String(), "Class 3 name: ")
}

func TestPrompter_RetriesInvalidAnswers(t *testing.T) {
	answers := strings.Join([]string{
		"Art", "Mrs Patel",
		"quarter past two", "25:00", "14:15",
		"someday", "9", "friday",
		"",
	}, "\n") + "\n"
	var out bytes.Buffer

	sched, err := NewPrompter(strings.NewReader(answers), &out).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, sched.Classes, 1)
	assert.Equal(t, model.Entry{Name: "Art", Teacher: "Mrs Patel", Hour: 14, Minute: 15, Weekday: model.Friday},
		sched.Classes[0])

	assert.Equal(t, 3, strings.Count(out.String(), "Start time (HH:MM): "))
	assert.Equal(t, 3, strings.Count(out.String(), "Weekday (mon-sun or 0-6): "))
	assert.Contains(t, out.String(), model.ErrInvalidHour.Error())
	assert.Contains(t, out.String(), model.ErrInvalidWeekday.Error())
}

func TestPrompter_EndOfInput(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		sched, err := NewPrompter(strings.NewReader(""), &bytes.Buffer{}).Collect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, sched.Len())
	})

	t.Run("unfinished class is dropped", func(t *testing.T) {
		answers := "Maths\nMs Smith\n08:30\nmon\nHistory\nMr Jones\n"
		sched, err := NewPrompter(strings.NewReader(answers), &bytes.Buffer{}).Collect(context.Background())
		require.NoError(t, err)
		require.Len(t, sched.Classes, 1)
		assert.Equal(t, "Maths", sched.Classes[0].Name)
	})
}

func TestPrompter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPrompter(strings.NewReader("Maths\n"), &bytes.Buffer{}).Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("terminal gone")
}

func TestPrompter_ReadError(t *testing.T) {
	_, err := NewPrompter(failingReader{}, &bytes.Buffer{}).Collect(context.Background())

	var adapterErr *AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, "prompt", adapterErr.Source)
	assert.Contains(t, err.Error(), "terminal gone")
}

func TestStdinAdapter_Collect(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"json", `{"schema_version": 1, "classes": [{"name": "Maths", "hour": 8, "minute": 30, "weekday": 0}]}`, 1, false},
		{"yaml", "classes:\n  - name: Art\n    hour: 14\n    minute: 45\n    weekday: 4\n  - name: PE\n    hour: 10\n    minute: 0\n    weekday: 1\n", 2, false},
		{"legacy", `{"class_list": [{"class_name": "History", "class_teacher": "Mr Jones", "class_hour": 9, "class_minute": 0, "class_weekday": 2}]}`, 1, false},
		{"empty", "", 0, false},
		{"invalid entry", `{"classes": [{"name": "", "hour": 8, "minute": 0, "weekday": 0}]}`, 0, true},
		{"not a timetable", `{oops`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := NewStdinAdapterWithReader(strings.NewReader(tt.input)).Collect(context.Background())
			if tt.wantErr {
				var adapterErr *AdapterError
				assert.True(t, errors.As(err, &adapterErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sched.Len())
		})
	}
}

func TestNewCollector(t *testing.T) {
	c, err := NewCollector("prompt", strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "prompt", c.Name())

	c, err = NewCollector("stdin", strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Equal(t, "stdin", c.Name())

	_, err = NewCollector("carrier-pigeon", nil, nil)
	var adapterErr *AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, "carrier-pigeon", adapterErr.Source)
}
