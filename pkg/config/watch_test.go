package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldTriggerReload(t *testing.T) {
	tests := []struct {
		name string
		evt  fsnotify.Event
		file string
		want bool
	}{
		{"write", fsnotify.Event{Name: "mocks/a.yaml", Op: fsnotify.Write}, "", true},
		{"create", fsnotify.Event{Name: "mocks/a.yaml", Op: fsnotify.Create}, "", true},
		{"remove", fsnotify.Event{Name: "mocks/a.yaml", Op: fsnotify.Remove}, "", true},
		{"chmod only", fsnotify.Event{Name: "mocks/a.yaml", Op: fsnotify.Chmod}, "", false},
		{"hidden", fsnotify.Event{Name: "mocks/.a.yaml.swp", Op: fsnotify.Write}, "", false},
		{"empty name", fsnotify.Event{Name: " ", Op: fsnotify.Write}, "", false},
		{"watched file", fsnotify.Event{Name: "mocks/a.yaml", Op: fsnotify.Rename}, "mocks/a.yaml", true},
		{"sibling of watched file", fsnotify.Event{Name: "mocks/b.yaml", Op: fsnotify.Write}, "mocks/a.yaml", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldTriggerReload(tt.evt, tt.file))
		})
	}
}

func TestWatch_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", ordersYAML)

	var calls atomic.Int32
	closer, err := Watch(dir, 50*time.Millisecond, nil, func() { calls.Add(1) })
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	// Hidden files never trigger.
	writeFile(t, dir, ".a.yaml.swp", "x")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	// Several writes inside the quiet period coalesce.
	for i := 0; i < 3; i++ {
		writeFile(t, dir, "a.yaml", ordersYAML)
	}
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	// New subdirectories are watched too.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	time.Sleep(100 * time.Millisecond)
	before := calls.Load()
	writeFile(t, dir, "nested/b.yaml", ordersJSON)
	require.Eventually(t, func() bool { return calls.Load() > before }, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mocks.yaml", ordersYAML)

	var calls atomic.Int32
	closer, err := Watch(path, 50*time.Millisecond, nil, func() { calls.Add(1) })
	require.NoError(t, err)

	writeFile(t, dir, "other.yaml", ordersYAML)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load(), "siblings are ignored")

	writeFile(t, dir, "mocks.yaml", ordersJSON)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, closer.Close())
}

func TestWatch_Missing(t *testing.T) {
	_, err := Watch(filepath.Join(t.TempDir(), "missing"), 0, nil, func() {})
	assert.ErrorIs(t, err, ErrFileNotFound)
}
