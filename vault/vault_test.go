package vault_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/vault"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := vault.New("test-key-material")
	require.NoError(t, err)

	creds := vault.Credentials{
		DeviceID:    "device-123",
		AccountID:   "account-456",
		Secret:      "s3cr3t",
		ClientToken: "basic-token",
	}

	blob, err := v.Encrypt(creds)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	got, err := v.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, creds, got)
}

func TestEncryptProducesFreshBlobs(t *testing.T) {
	v, err := vault.New("test-key-material")
	require.NoError(t, err)

	creds := vault.Credentials{DeviceID: "d", AccountID: "a", Secret: "s"}

	first, err := v.Encrypt(creds)
	require.NoError(t, err)
	second, err := v.Encrypt(creds)
	require.NoError(t, err)
	require.NotEqual(t, first, second, "nonce must randomize ciphertext")
}

func TestDecryptWrongKey(t *testing.T) {
	v1, err := vault.New("key-one")
	require.NoError(t, err)
	v2, err := vault.New("key-two")
	require.NoError(t, err)

	blob, err := v1.Encrypt(vault.Credentials{DeviceID: "d", AccountID: "a", Secret: "s"})
	require.NoError(t, err)

	_, err = v2.Decrypt(blob)
	require.ErrorIs(t, err, apperrors.ErrVaultCorrupt)
}

func TestDecryptGarbage(t *testing.T) {
	v, err := vault.New("key")
	require.NoError(t, err)

	for _, blob := range []string{"", "not base64 !!!", "c2hvcnQ"} {
		_, err := v.Decrypt(blob)
		require.ErrorIs(t, err, apperrors.ErrVaultCorrupt)
	}
}

func TestNewRequiresKey(t *testing.T) {
	_, err := vault.New("")
	require.Error(t, err)
}
