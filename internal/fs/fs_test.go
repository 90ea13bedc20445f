package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOS(t *testing.T) {
	tmp := t.TempDir()
	fsys := OS{}

	dir := filepath.Join(tmp, "subdir")
	require.NoError(t, fsys.MkdirAll(dir, 0o755))

	fpath := filepath.Join(dir, "rows.dat")
	f, err := fsys.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	buf := make([]byte, 3)
	_, err = f.ReadAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, "ell", string(buf))

	require.NoError(t, f.Truncate(2))
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Size())
	require.NoError(t, f.Close())

	require.NoError(t, fsys.Rename(fpath, fpath+".old"))
	require.NoError(t, fsys.SyncDir(dir))
	_, err = os.Stat(fpath + ".old")
	require.NoError(t, err)

	require.NoError(t, fsys.Remove(fpath+".old"))
	require.NoError(t, fsys.Remove(fpath+".old"))
	assert.Error(t, fsys.SyncDir(filepath.Join(tmp, "missing")))
}

func TestFaultyFS_FailAfterBytes(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("rows", Fault{FailAfterBytes: 5, FailOnSync: true})

	f, err := ffs.OpenFile(filepath.Join(t.TempDir(), "rows.dat"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = f.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, n)

	assert.ErrorIs(t, f.Sync(), ErrInjected)
}

func TestFaultyFS_ReadAndClose(t *testing.T) {
	boom := errors.New("boom")
	ffs := NewFaultyFS(OS{})
	ffs.AddRule("bad", Fault{FailAfterBytes: -1, FailOnRead: true, FailOnClose: true, Err: boom})

	tmp := t.TempDir()
	f, err := ffs.OpenFile(filepath.Join(tmp, "bad.dat"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)

	_, err = f.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, f.Close(), boom)

	ffs.ClearRules()
	f, err = ffs.OpenFile(filepath.Join(tmp, "bad.dat"), os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.ReadAt(make([]byte, 1), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
