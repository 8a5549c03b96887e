package symbols

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_OpenSelf(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	f, err := Open(exe)
	require.NoError(t, err)
	defer f.Close()

	text, err := f.Text()
	require.NoError(t, err)
	require.NotZero(t, text.Len())
	require.NotZero(t, text.Base())
}

func Test_OpenUnknown(t *testing.T) {
	name := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(name, []byte("not an executable at all"), 0o644))

	_, err := Open(name)
	require.Error(t, err)

	_, err = ReadSymbols(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
