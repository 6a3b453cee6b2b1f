// Package secretbox cifra secretos chicos (client secrets) con AES-256-GCM.
//
// Formato: base64(nonce)|base64(ciphertext). En el YAML se escriben con el
// prefijo "enc:".
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Prefix marca un valor cifrado en la configuración.
	Prefix            = "enc:"
	nonceSizeGCM      = 12  // AES-GCM nonce size recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var (
	ErrInvalidKey    = errors.New("secretbox: invalid key")
	ErrInvalidFormat = errors.New("secretbox: invalid format")
)

// Box guarda el AEAD ya inicializado. Es seguro para uso concurrente.
type Box struct {
	aead cipher.AEAD
}

// New acepta la clave en base64 (std o raw), hex de 64 chars o 32 bytes crudos.
// Generar una con: openssl rand -base64 32
func New(key string) (*Box, error) {
	k, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

func decodeKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(key) == 64 {
		if h, err := hex.DecodeString(key); err == nil {
			return h, nil
		}
	}
	if len(key) == requiredKeyLength {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("%w: requires %d bytes", ErrInvalidKey, requiredKeyLength)
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext), sin prefijo.
func (b *Box) Encrypt(plainText string) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt acepta el valor con o sin Prefix.
func (b *Box) Decrypt(cipherText string) (string, error) {
	parts := strings.Split(strings.TrimPrefix(cipherText, Prefix), sep)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: expected base64(nonce)|base64(ciphertext)", ErrInvalidFormat)
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: decode nonce: %v", ErrInvalidFormat, err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %v", ErrInvalidFormat, err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrInvalidFormat, nonceSizeGCM, len(nonce))
	}
	pt, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

// IsEncrypted indica si v lleva Prefix.
func IsEncrypted(v string) bool { return strings.HasPrefix(v, Prefix) }
