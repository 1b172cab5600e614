package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMD5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hash.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	got, err := FileMD5(path)
	require.NoError(t, err)
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", got)
	assert.Equal(t, got, BytesMD5([]byte("hello world")))
}

func TestFileMD5Missing(t *testing.T) {
	_, err := FileMD5(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestTokenHex(t *testing.T) {
	tok := TokenHex(3)
	assert.Len(t, tok, 6)
	assert.NotEqual(t, tok, TokenHex(3))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "*****", MaskSecret("abc"))
	assert.Equal(t, "abcd*****", MaskSecret("abcdefgh"))
}
