package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionManager_RoundTrip(t *testing.T) {
	m, err := NewEncryptionManager(DeriveKeyFromClusterSeed("org-acme"))
	require.NoError(t, err)

	plaintext := []byte(`{"username":"svc","password":"hunter2"}`)
	ciphertext, err := m.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	got, err := m.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptionManager_TamperedCiphertextFailsClosed(t *testing.T) {
	m, err := NewEncryptionManager(DeriveKeyFromClusterSeed("org-acme"))
	require.NoError(t, err)

	ciphertext, err := m.Encrypt([]byte("sensitive"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err = m.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestEncryptionManager_WrongKeyFailsClosed(t *testing.T) {
	m1, err := NewEncryptionManager(DeriveKeyFromClusterSeed("org-acme"))
	require.NoError(t, err)
	m2, err := NewEncryptionManager(DeriveKeyFromClusterSeed("org-other"))
	require.NoError(t, err)

	ciphertext, err := m1.Encrypt([]byte("sensitive"))
	require.NoError(t, err)

	_, err = m2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestNewEncryptionManager_RejectsWrongKeySize(t *testing.T) {
	_, err := NewEncryptionManager([]byte("too-short"))
	assert.Error(t, err)
}

func TestNewEncryptionManagerFromPassphrase(t *testing.T) {
	m, err := NewEncryptionManagerFromPassphrase("correct horse battery staple")
	require.NoError(t, err)

	ciphertext, err := m.Encrypt([]byte("sensitive"))
	require.NoError(t, err)
	got, err := m.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("sensitive"), got)
}

func TestNewEncryptionManagerFromPassphrase_RejectsEmpty(t *testing.T) {
	_, err := NewEncryptionManagerFromPassphrase("")
	assert.Error(t, err)
}
