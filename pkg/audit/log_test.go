package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runAt = time.Date(2026, 3, 9, 14, 5, 7, 0, time.UTC)

func ptr(f float64) *float64 { return &f }

func TestNew(t *testing.T) {
	l := New("tasks", "gemini", "db-1", true, runAt)
	assert.Equal(t, ModeDebug, l.Mode)
	_, err := uuid.Parse(l.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "tasks_20260309_140507_"+l.RunID[:8]+".json", l.FileName())

	assert.Equal(t, ModeProduction, New("projects", "gpt", "db-2", false, runAt).Mode)
}

func TestAdd_Tally(t *testing.T) {
	l := New("projects", "gemini", "db", false, runAt)
	l.Scanned(5)
	l.Skip()
	l.Add("a", Entry{Name: "A", Action: "estimate", Status: StatusWritten})
	l.Add("b", Entry{Name: "B", Action: "estimate", Status: StatusFailed})
	l.Add("c", Entry{Name: "C", Action: "clear", Status: StatusSimulated})

	assert.Equal(t, Summary{Total: 3, Updated: 2, Failed: 1, Skipped: 1, Scanned: 5}, l.Snapshot())
	assert.Len(t, l.Estimates, 3)
}

func TestAdd_Concurrent(t *testing.T) {
	l := New("tasks", "gemini", "db", false, runAt)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := StatusWritten
			if i%5 == 0 {
				status = StatusFailed
			}
			l.Add(string(rune('A'+i)), Entry{Status: status})
		}(i)
	}
	wg.Wait()

	s := l.Snapshot()
	assert.Equal(t, 50, s.Total)
	assert.Equal(t, 40, s.Updated)
	assert.Equal(t, 10, s.Failed)
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l := New("tasks", "gemini", "db-1", false, runAt)
	l.Add("t1", Entry{
		Name:             "Rédiger",
		Action:           "estimate",
		Reason:           "first estimation",
		EstimatedMinutes: ptr(37),
		WrittenHours:     ptr(0.5),
		Status:           StatusWritten,
	})

	path, err := l.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tasks_20260309_140507_"+l.RunID[:8]+".json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"run_id\"")
	assert.Contains(t, string(raw), "Rédiger")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "PRODUCTION", doc["mode"])
	assert.Equal(t, "db-1", doc["database_id"])
	entry := doc["estimates"].(map[string]any)["t1"].(map[string]any)
	assert.Equal(t, 37.0, entry["estimated_minutes"])
	assert.Equal(t, 0.5, entry["written_hours"])
	assert.NotContains(t, entry, "written_weeks")
	summary := doc["summary"].(map[string]any)
	assert.Equal(t, 1.0, summary["updated"])
}

func TestSave_ReplacesFileAtDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, os.WriteFile(dir, []byte("not a dir"), 0o644))

	path, err := New("projects", "gpt", "db", true, runAt).Save(dir)
	require.NoError(t, err)
	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.FileExists(t, path)
}

func TestSave_SameSecondKeepsBothDocuments(t *testing.T) {
	dir := t.TempDir()
	first := New("tasks", "gemini", "db", false, runAt)
	second := New("tasks", "gemini", "db", false, runAt)
	second.Skip()

	p1, err := first.Save(dir)
	require.NoError(t, err)
	p2, err := second.Save(dir)
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
