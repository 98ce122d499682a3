package am

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[view]\nrefresh_interval_seconds = 5\n"), DefaultFilePermissions))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	cw.load = func() (*Config, error) { return LoadFromFile(path) }
	cw.debouncePeriod = 10 * time.Millisecond

	var mu sync.Mutex
	var got []*Config
	cw.OnReload(func(cfg *Config) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, cfg)
		return nil
	})

	cw.Start()
	t.Cleanup(func() { _ = cw.Stop() })

	require.NoError(t, os.WriteFile(path, []byte("[view]\nrefresh_interval_seconds = 2\n"), DefaultFilePermissions))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].RefreshInterval() == 2*time.Second
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "am.toml")
	require.NoError(t, os.WriteFile(path, nil, DefaultFilePermissions))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	cw.load = func() (*Config, error) { return LoadFromFile(path) }
	cw.debouncePeriod = 10 * time.Millisecond

	var mu sync.Mutex
	calls := 0
	cw.OnReload(func(*Config) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})
	cw.Start()

	require.NoError(t, os.WriteFile(path+".back1", []byte("x"), DefaultFilePermissions))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, cw.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestConfigWatcher_OwnWriteFlag(t *testing.T) {
	cw := &ConfigWatcher{}
	assert.False(t, cw.checkOwnWrite())

	cw.MarkOwnWrite()
	assert.True(t, cw.checkOwnWrite())
	assert.False(t, cw.checkOwnWrite(), "flag clears after one check")
}

func TestConfigWatcher_StopWithoutStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, nil, DefaultFilePermissions))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	assert.NoError(t, cw.Stop())
}
