package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/ports"
)

// SealPrefix marks a sealed value in the underlying store.
const SealPrefix = "sealed:v1:"

// ErrTampered is returned for a sealed key whose stored value does not open with any key.
// It also matches domain.ErrFlagNotFound, so the gate treats the flag as never written.
var ErrTampered = errors.New("sealed flag failed verification")

// SealConfig holds the keys for sealing and opening.
type SealConfig struct {
	// ActiveKey is the key used for sealing new values.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when opening fails.
	// This enables key rotation without losing progress.
	FallbackKeys [][]byte

	// Keys lists the flags to seal. Nil seals every flag.
	Keys []string
}

type sealMiddleware struct {
	passthrough
	config SealConfig
	keys   map[string]bool
}

// NewSealMiddleware creates a middleware that stores the selected flags as AES-GCM
// sealed strings. The flag key is authenticated with the value, so a sealed value
// copied to another key, or a plain value written over a sealed key, reads as unset.
func NewSealMiddleware(config SealConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256), got %d", i, len(k))
		}
	}

	var keys map[string]bool
	if config.Keys != nil {
		keys = make(map[string]bool, len(config.Keys))
		for _, k := range config.Keys {
			keys[k] = true
		}
	}

	return func(next ports.FlagStore) ports.FlagStore {
		return &sealMiddleware{
			passthrough: passthrough{next: next},
			config:      config,
			keys:        keys,
		}
	}, nil
}

// DecodeKey parses a base64 (standard encoding) AES-256 key.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid seal key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid seal key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (m *sealMiddleware) sealed(key string) bool {
	return m.keys == nil || m.keys[key]
}

func (m *sealMiddleware) Get(ctx context.Context, key string) (domain.Value, error) {
	v, err := m.next.Get(ctx, key)
	if err != nil || !m.sealed(key) {
		return v, err
	}
	return m.open(key, v)
}

func (m *sealMiddleware) Set(ctx context.Context, key string, value domain.Value) error {
	if !m.sealed(key) {
		return m.next.Set(ctx, key, value)
	}
	sealed, err := m.seal(key, value)
	if err != nil {
		return fmt.Errorf("failed to seal %s: %w", key, err)
	}
	return m.next.Set(ctx, key, sealed)
}

// Snapshot opens every sealed flag. Flags that fail verification are left out.
func (m *sealMiddleware) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	snap, err := m.next.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make(domain.Snapshot, len(snap))
	for k, v := range snap {
		if !m.sealed(k) {
			out[k] = v
			continue
		}
		if opened, err := m.open(k, v); err == nil {
			out[k] = opened
		}
	}
	return out, nil
}

func (m *sealMiddleware) seal(key string, value domain.Value) (domain.Value, error) {
	plainText, err := json.Marshal(value)
	if err != nil {
		return domain.Value{}, err
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey, []byte(key))
	if err != nil {
		return domain.Value{}, err
	}
	return domain.String(SealPrefix + base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (m *sealMiddleware) open(key string, v domain.Value) (domain.Value, error) {
	tampered := fmt.Errorf("%s: %w: %w", key, ErrTampered, domain.ErrFlagNotFound)

	s, ok := v.AsString()
	if !ok || !strings.HasPrefix(s, SealPrefix) {
		return domain.Value{}, tampered
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, SealPrefix))
	if err != nil {
		return domain.Value{}, tampered
	}
	plainText, err := decryptWithRotation(ciphertext, []byte(key), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Value{}, tampered
	}

	var out domain.Value
	if err := json.Unmarshal(plainText, &out); err != nil {
		return domain.Value{}, tampered
	}
	return out, nil
}

// Helpers

func encrypt(plaintext, key, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func decryptWithRotation(ciphertext, aad, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey, aad); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key, aad); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, aad)
}
