package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/classbell/internal/model"
)

// Wednesday 2024-01-03 10:00 UTC
var refNow = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

func testOptions() FormatterOptions {
	opts := DefaultFormatterOptions()
	opts.Now = func() time.Time { return refNow }
	return opts
}

func testEntries() []model.Entry {
	return []model.Entry{
		{Name: "Maths", Teacher: "Ms Smith", Hour: 8, Minute: 30, Weekday: model.Monday},
		{Name: "History", Teacher: "Mr Jones", Hour: 9, Minute: 0, Weekday: model.Wednesday},
		{Name: "Assembly", Hour: 10, Minute: 0, Weekday: model.Wednesday},
	}
}

func testOutcomes() []model.Outcome {
	entries := testEntries()
	return []model.Outcome{
		{
			ID:         "01HKZ0000000000000000000A1",
			Entry:      entries[0],
			State:      model.StateFired,
			StartedAt:  refNow.Add(-10 * time.Minute).Unix(),
			FinishedAt: refNow.Add(-3 * time.Minute).Unix(),
		},
		{
			ID:         "01HKZ0000000000000000000A2",
			Entry:      entries[1],
			State:      model.StateFailed,
			Error:      "sound /sounds/bell.ogg: decode failed:\nunexpected EOF",
			StartedAt:  refNow.Add(-3 * time.Hour).Unix(),
			FinishedAt: refNow.Add(-2 * time.Hour).Unix(),
		},
	}
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func TestPlainFormatter_FormatEntries(t *testing.T) {
	var buf bytes.Buffer

	err := NewPlainFormatter(testOptions()).FormatEntries(&buf, testEntries())
	require.NoError(t, err)

	got := lines(&buf)
	require.Len(t, got, 3)
	assert.Equal(t, "[1] Monday    08:30  Maths (Ms Smith)  next 4 days from now", got[0])
	assert.Equal(t, "[2] Wednesday 09:00  History (Mr Jones)  next 6 days from now", got[1])
	assert.Equal(t, "[3] Wednesday 10:00  Assembly  next now", got[2])
}

func TestPlainFormatter_NoIndexNoNext(t *testing.T) {
	var buf bytes.Buffer

	opts := testOptions()
	opts.ShowIndex = false
	opts.ShowNext = false
	err := NewPlainFormatter(opts).FormatEntries(&buf, testEntries()[:1])
	require.NoError(t, err)

	assert.Equal(t, "Monday    08:30  Maths (Ms Smith)\n", buf.String())
}

func TestPlainFormatter_CustomTemplate(t *testing.T) {
	var buf bytes.Buffer

	opts := testOptions()
	opts.Template = "{{.Index}}: {{upper .Entry.Name}} {{reltime .Next}}\n"
	err := NewPlainFormatter(opts).FormatEntries(&buf, testEntries()[:2])
	require.NoError(t, err)

	assert.Equal(t, []string{"1: MATHS 4 days from now", "2: HISTORY 6 days from now"}, lines(&buf))
}

func TestPlainFormatter_InvalidTemplateFallsBack(t *testing.T) {
	var buf bytes.Buffer

	opts := testOptions()
	opts.Template = "{{.Broken"
	err := NewPlainFormatter(opts).FormatEntries(&buf, testEntries()[:1])
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Maths (Ms Smith)")
}

func TestPlainFormatter_FormatOutcomes(t *testing.T) {
	var buf bytes.Buffer

	err := NewPlainFormatter(testOptions()).FormatOutcomes(&buf, testOutcomes())
	require.NoError(t, err)

	got := lines(&buf)
	require.Len(t, got, 3)
	assert.Equal(t, "[1] fired     Maths (Ms Smith) Monday 08:30 (3 minutes ago)", got[0])
	assert.Equal(t, "[2] failed    History (Mr Jones) Wednesday 09:00 (2 hours ago)", got[1])
	assert.Equal(t, "    sound /sounds/bell.ogg: decode failed: unexpected EOF", got[2])
}

func TestPlainFormatter_TruncatesErrors(t *testing.T) {
	var buf bytes.Buffer

	opts := testOptions()
	opts.MaxLen = 20
	err := NewPlainFormatter(opts).FormatOutcomes(&buf, testOutcomes()[1:])
	require.NoError(t, err)

	got := lines(&buf)
	require.Len(t, got, 2)
	assert.Equal(t, "    sound /sounds/bel...", got[1])
}

func TestDmenuFormatter_FormatEntries(t *testing.T) {
	var buf bytes.Buffer

	err := NewDmenuFormatter(testOptions()).FormatEntries(&buf, testEntries())
	require.NoError(t, err)

	got := lines(&buf)
	require.Len(t, got, 3)
	assert.Equal(t, "1 | Monday 08:30 | Maths (Ms Smith) | 4 days from now", got[0])
	assert.Equal(t, "3 | Wednesday 10:00 | Assembly | now", got[2])
}

func TestDmenuFormatter_Separator(t *testing.T) {
	var buf bytes.Buffer

	opts := testOptions()
	opts.ShowIndex = false
	opts.ShowNext = false
	opts.Separator = "\t"
	err := NewDmenuFormatter(opts).FormatEntries(&buf, testEntries()[:1])
	require.NoError(t, err)

	assert.Equal(t, "Monday 08:30\tMaths (Ms Smith)\n", buf.String())
}

func TestDmenuFormatter_CustomTemplate(t *testing.T) {
	var buf bytes.Buffer

	opts := testOptions()
	opts.Template = "{{.Entry.Clock}} {{.Entry.Name}}"
	err := NewDmenuFormatter(opts).FormatEntries(&buf, testEntries()[:2])
	require.NoError(t, err)

	assert.Equal(t, []string{"08:30 Maths", "09:00 History"}, lines(&buf))
}

func TestDmenuFormatter_FormatOutcomes(t *testing.T) {
	var buf bytes.Buffer

	err := NewDmenuFormatter(testOptions()).FormatOutcomes(&buf, testOutcomes())
	require.NoError(t, err)

	got := lines(&buf)
	require.Len(t, got, 2)
	assert.Equal(t, "1 | 3 minutes ago | fired | Maths (Ms Smith) Monday 08:30", got[0])
	assert.True(t, strings.HasSuffix(got[1], "| sound /sounds/bell.ogg: decode failed: unexpected EOF"))
}

func TestJSONFormatter_FormatEntries(t *testing.T) {
	var buf bytes.Buffer

	err := NewJSONFormatter(testOptions()).FormatEntries(&buf, testEntries())
	require.NoError(t, err)

	var result []entryView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	require.Len(t, result, 3)

	assert.Equal(t, 1, result[0].Index)
	assert.Equal(t, "Maths", result[0].Name)
	assert.Equal(t, "Monday", result[0].WeekdayName)
	assert.Equal(t, "30 8 * * 1", result[0].Cron)

	next, err := time.Parse(time.RFC3339, result[0].Next)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 1, 8, 8, 30, 0, 0, time.UTC)))
}

func TestJSONFormatter_FormatOutcomes(t *testing.T) {
	var buf bytes.Buffer

	err := NewJSONFormatter(testOptions()).FormatOutcomes(&buf, testOutcomes())
	require.NoError(t, err)

	var result []model.Outcome
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, testOutcomes(), result)
}

func TestJSONFormatter_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewJSONFormatter(testOptions()).FormatOutcomes(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLFormatter_FormatEntries(t *testing.T) {
	var buf bytes.Buffer

	opts := testOptions()
	opts.ShowNext = false
	err := NewYAMLFormatter(opts).FormatEntries(&buf, testEntries()[:1])
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "name: Maths")
	assert.Contains(t, buf.String(), "weekday_name: Monday")
	assert.NotContains(t, buf.String(), "next:")
}

func TestYAMLFormatter_FormatOutcomes(t *testing.T) {
	var buf bytes.Buffer

	err := NewYAMLFormatter(testOptions()).FormatOutcomes(&buf, testOutcomes())
	require.NoError(t, err)

	var result []model.Outcome
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, testOutcomes(), result)
	assert.Contains(t, buf.String(), "finished_at:")
}

func TestNewFormatter(t *testing.T) {
	opts := testOptions()

	assert.IsType(t, &PlainFormatter{}, NewFormatter(FormatPlain, opts))
	assert.IsType(t, &DmenuFormatter{}, NewFormatter(FormatDmenu, opts))
	assert.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON, opts))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter(FormatYAML, opts))
	assert.IsType(t, &PlainFormatter{}, NewFormatter("unknown", opts))
}

func TestFormatField(t *testing.T) {
	e := testEntries()[0]

	tests := []struct {
		field string
		want  string
	}{
		{"name", "Maths"},
		{"teacher", "Ms Smith"},
		{"time", "08:30"},
		{"day", "Monday"},
		{"cron", "30 8 * * 1"},
		{"", "Maths (Ms Smith) Monday 08:30"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatField(e, tt.field))
		})
	}
}

func TestRelativeTime(t *testing.T) {
	assert.Equal(t, "unknown", relativeTime(refNow, time.Time{}))
	assert.Equal(t, "now", relativeTime(refNow, refNow.Add(30*time.Second)))
	assert.Equal(t, "5 minutes ago", relativeTime(refNow, refNow.Add(-5*time.Minute)))
	assert.Equal(t, "2 hours from now", relativeTime(refNow, refNow.Add(2*time.Hour)))
}
