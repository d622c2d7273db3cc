package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
)

// envelopePrefix marks an encrypted message body.
const envelopePrefix = "enc:v1:"

// ErrKeySize is returned for keys that are not 32 bytes.
var ErrKeySize = errors.New("encryption key must be 32 bytes (AES-256)")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new messages. Must be 32 bytes.
	ActiveKey []byte

	// FallbackKeys are tried when the active key cannot decrypt, so keys can rotate without downtime.
	FallbackKeys [][]byte
}

type encryptedRepository struct {
	ports.Repository
	config EncryptionConfig
}

// NewEncryptionMiddleware encrypts message bodies with AES-GCM before they reach the store.
// Projects, plans and slides pass through unchanged.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, ErrKeySize
	}
	for _, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key: %w", ErrKeySize)
		}
	}
	return func(next ports.Repository) ports.Repository {
		return &encryptedRepository{Repository: next, config: config}
	}, nil
}

func (r *encryptedRepository) CreateMessage(ctx context.Context, projectID string, m domain.Message) error {
	ciphertext, err := encrypt([]byte(m.Content), r.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt message: %w", err)
	}
	m.Content = envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext)
	return r.Repository.CreateMessage(ctx, projectID, m)
}

func (r *encryptedRepository) ListMessages(ctx context.Context, projectID string, limit, offset int) ([]domain.Message, int, error) {
	msgs, total, err := r.Repository.ListMessages(ctx, projectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range msgs {
		plain, err := r.open(msgs[i].Content)
		if err != nil {
			return nil, 0, fmt.Errorf("message %s: %w", msgs[i].ID, err)
		}
		msgs[i].Content = plain
	}
	return msgs, total, nil
}

func (r *encryptedRepository) open(content string) (string, error) {
	encoded, ok := strings.CutPrefix(content, envelopePrefix)
	if !ok {
		// Fail secure: a plaintext body means the store was written without encryption.
		return "", errors.New("message is missing encrypted envelope")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plain, err := decryptWithRotation(ciphertext, r.config.ActiveKey, r.config.FallbackKeys)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// ParseKey decodes a base64 key as found in configuration.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	return key, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
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

func decryptWithRotation(ciphertext, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
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

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
