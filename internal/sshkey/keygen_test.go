package sshkey

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestEnsureKeyGeneratesWhenAbsent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".ssh")

	kp, generated, err := EnsureKey(dir, "mori@test")
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, filepath.Join(dir, GeneratedKeyFile), kp.PrivateKeyPath)

	info, err := os.Stat(kp.PrivateKeyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pub, err := ReadPublicKey(kp.PublicKeyPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pub, "ssh-ed25519 "))
	assert.True(t, strings.HasSuffix(pub, " mori@test"))
	_, _, _, _, err = ssh.ParseAuthorizedKey([]byte(pub))
	require.NoError(t, err)
}

func TestEnsureKeyReusesExisting(t *testing.T) {
	dir := t.TempDir()

	first, generated, err := EnsureKey(dir, "")
	require.NoError(t, err)
	require.True(t, generated)

	second, generated, err := EnsureKey(dir, "")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, first, second)
}

func TestEnsureKeyRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "id_rsa"), []byte("not a key"), 0o600))

	_, _, err := EnsureKey(dir, "")
	require.Error(t, err)
}
