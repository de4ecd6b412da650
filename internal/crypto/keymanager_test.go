package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(plainKey, "hunter2")
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"version"`)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, plainKey, got)
}

func TestEncryptKeyAcceptsPrefix(t *testing.T) {
	blob, err := EncryptKey("0x"+plainKey, "pw")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, plainKey, got)
}

func TestDecryptKeyWrongPassword(t *testing.T) {
	blob, err := EncryptKey(plainKey, "right")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKeyValidation(t *testing.T) {
	_, err := EncryptKey(plainKey, "")
	assert.Error(t, err)

	_, err = EncryptKey("zz", "pw")
	assert.Error(t, err)

	_, err = EncryptKey(strings.Repeat("ab", 16)+"ff", "pw")
	assert.Error(t, err, "33-byte key must be rejected")
}

func TestLoadKeyRawTakesPrecedence(t *testing.T) {
	got, err := LoadKey(KeySource{RawPrivateKey: "0x" + plainKey, EncryptedKeyPath: "/nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, plainKey, got)
}

func TestLoadKeyFromFile(t *testing.T) {
	blob, err := EncryptKey(plainKey, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeySource{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, plainKey, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeySource{})
	assert.Error(t, err)
	assert.False(t, KeySource{}.Configured())
	assert.True(t, KeySource{RawPrivateKey: "aa"}.Configured())
}
