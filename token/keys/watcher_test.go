package keys

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchFile_DebouncesReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signing.pem")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var reloads atomic.Int32
	require.NoError(t, watchFile(ctx, path, 50*time.Millisecond, func() { reloads.Add(1) }))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))
	}
	require.Eventually(t, func() bool { return reloads.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.pem"), []byte("x"), 0o600))
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, int32(1), reloads.Load())
}

func TestWatchFile_RotatesProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signing.pem")

	first, err := GenerateRSAKeyPair("", 2048)
	require.NoError(t, err)
	second, err := GenerateRSAKeyPair("", 2048)
	require.NoError(t, err)

	firstPEM, err := first.ExportPrivateKeyPEM()
	require.NoError(t, err)
	secondPEM, err := second.ExportPrivateKeyPEM()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(firstPEM), 0o600))
	p := NewProvider()
	require.NoError(t, p.LoadFile(path))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, WatchFile(ctx, path, p))

	require.NoError(t, os.WriteFile(path, []byte(secondPEM), 0o600))
	require.Eventually(t, func() bool {
		kp, err := p.Current()
		return err == nil && kp.KeyID == second.KeyID
	}, 5*time.Second, 20*time.Millisecond)
}
