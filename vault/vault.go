// Package vault encrypts device-auth credential bundles for storage.
// Encryption is deterministic in shape only: every blob carries a random
// nonce, so encrypting the same bundle twice yields different ciphertexts
// that both decrypt to the same credentials.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
)

const nonceSize = 24

// Credentials is the durable secret triple plus the client token that must
// be replayed for future liveness checks against the identity provider.
type Credentials struct {
	DeviceID    string `json:"device_id"`
	AccountID   string `json:"account_id"`
	Secret      string `json:"secret"`
	ClientToken string `json:"client_token,omitempty"`
}

// Vault seals and opens credential blobs with a static key.
type Vault struct {
	key [32]byte
}

// New derives the sealing key from the configured key material.
func New(keyMaterial string) (*Vault, error) {
	if keyMaterial == "" {
		return nil, errors.New("[vault.New] encryption key is required")
	}
	return &Vault{key: sha256.Sum256([]byte(keyMaterial))}, nil
}

// Encrypt seals the credential bundle into a URL-safe base64 blob.
func (v *Vault) Encrypt(creds Credentials) (string, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return "", errors.Wrap(err, "[Vault.Encrypt] marshal")
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", errors.Wrap(err, "[Vault.Encrypt] nonce")
	}

	sealed := secretbox.Seal(nonce[:], payload, &nonce, &v.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. A blob that fails to decode,
// is too short, or does not authenticate returns ErrVaultCorrupt so callers
// can distinguish "corrupt or wrong key" from other failures.
func (v *Vault) Decrypt(blob string) (Credentials, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return Credentials{}, apperrors.Wrapf(apperrors.ErrVaultCorrupt, "[Vault.Decrypt] decode")
	}
	if len(raw) <= nonceSize {
		return Credentials{}, apperrors.Wrapf(apperrors.ErrVaultCorrupt, "[Vault.Decrypt] short blob")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	payload, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &v.key)
	if !ok {
		return Credentials{}, apperrors.Wrapf(apperrors.ErrVaultCorrupt, "[Vault.Decrypt] open")
	}

	var creds Credentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return Credentials{}, apperrors.Wrapf(apperrors.ErrVaultCorrupt, "[Vault.Decrypt] unmarshal")
	}
	return creds, nil
}
