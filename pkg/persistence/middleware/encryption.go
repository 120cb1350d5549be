package middleware

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/weave/pkg/ports"
)

// envelope prefixes every encrypted value so plain records are detected on read.
var envelope = []byte("weave:enc:v1:")

// ErrNotEncrypted is returned when a record read through the middleware carries no envelope.
var ErrNotEncrypted = errors.New("record is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// Validate checks key sizes.
func (c EncryptionConfig) Validate() error {
	if len(c.ActiveKey) != 32 {
		return errors.New("active key must be 32 bytes (AES-256)")
	}
	for i, k := range c.FallbackKeys {
		if len(k) != 32 {
			return fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i)
		}
	}
	return nil
}

type encryptionMiddleware struct {
	next   ports.Store
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts record values using AES-GCM.
// Keys stay in clear text so prefix scans keep working.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if err := config.Validate(); err != nil {
		panic(err.Error())
	}
	return func(next ports.Store) ports.Store {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	return m.next.View(ctx, func(tx ports.Tx) error {
		return fn(&encryptedTx{next: tx, config: m.config})
	})
}

func (m *encryptionMiddleware) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	return m.next.Update(ctx, func(tx ports.Tx) error {
		return fn(&encryptedTx{next: tx, config: m.config})
	})
}

func (m *encryptionMiddleware) Close() error {
	return m.next.Close()
}

type encryptedTx struct {
	next   ports.Tx
	config EncryptionConfig
}

func (t *encryptedTx) Get(key string) ([]byte, error) {
	sealed, err := t.next.Get(key)
	if err != nil {
		return nil, err
	}
	return t.open(key, sealed)
}

func (t *encryptedTx) Set(key string, value []byte) error {
	ciphertext, err := encrypt(value, t.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt %q: %w", key, err)
	}
	return t.next.Set(key, append(append([]byte(nil), envelope...), ciphertext...))
}

func (t *encryptedTx) Delete(key string) error {
	return t.next.Delete(key)
}

func (t *encryptedTx) Scan(prefix string) ([]ports.KV, error) {
	kvs, err := t.next.Scan(prefix)
	if err != nil {
		return nil, err
	}
	for i := range kvs {
		plain, err := t.open(kvs[i].Key, kvs[i].Value)
		if err != nil {
			return nil, err
		}
		kvs[i].Value = plain
	}
	return kvs, nil
}

func (t *encryptedTx) open(key string, sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, envelope) {
		return nil, fmt.Errorf("%q: %w", key, ErrNotEncrypted)
	}
	plain, err := decryptWithRotation(sealed[len(envelope):], t.config.ActiveKey, t.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %q: %w", key, err)
	}
	return plain, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
