package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_MergesBursts(t *testing.T) {
	in := make(chan ChangeEvent)
	d := NewDebouncer(in, 20*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	in <- ChangeEvent{Type: ChangeTypeListeners, Paths: []string{"l.yaml"}}
	in <- ChangeEvent{Type: ChangeTypeFacts, Paths: []string{"a.yaml"}}
	in <- ChangeEvent{Type: ChangeTypeFacts, Paths: []string{"a.yaml"}}
	close(in)

	var got []ChangeEvent
	for ev := range d.Output() {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, ChangeTypeFacts, got[0].Type, "facts flush first")
	assert.Equal(t, []string{"a.yaml", "a.yaml"}, got[0].Paths)
	assert.Equal(t, ChangeTypeListeners, got[1].Type)
}

func TestDebouncer_QuietPeriod(t *testing.T) {
	in := make(chan ChangeEvent)
	d := NewDebouncer(in, 10*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	in <- ChangeEvent{Type: ChangeTypeConfig, Paths: []string{"guiflow.toml"}}
	select {
	case ev := <-d.Output():
		assert.Equal(t, ChangeTypeConfig, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no flush after quiet period")
	}
}

func TestFileWatcher_ReportsWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	facts := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(facts, []byte("classes: []\n"), 0o644))

	fw, err := NewFileWatcher(map[string]ChangeType{facts: ChangeTypeFacts, "": ChangeTypeConfig})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(facts, []byte("classes: []\nevents: []\n"), 0o644))

	select {
	case ev := <-fw.Events():
		assert.Equal(t, ChangeTypeFacts, ev.Type)
		assert.Contains(t, ev.Paths, facts)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
	}

	cancel()
	for range fw.Events() {
	}
}

func TestChangeTypeString(t *testing.T) {
	assert.Equal(t, "facts", ChangeTypeFacts.String())
	assert.Equal(t, "listeners", ChangeTypeListeners.String())
	assert.Equal(t, "config", ChangeTypeConfig.String())
	assert.Equal(t, "ChangeType(9)", ChangeType(9).String())
}
