package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

const keySize = 32

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Service seals column values with AES-256-GCM. An unconfigured service
// passes values through unchanged.
type Service struct {
	key []byte
}

func New(key string) (*Service, error) {
	if key == "" {
		return &Service{}, nil
	}
	decoded := decodeKey(key)
	if len(decoded) != keySize {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be %d bytes after decoding", keySize)
	}
	return &Service{key: decoded}, nil
}

func (s *Service) Configured() bool {
	return s != nil && len(s.key) == keySize
}

func (s *Service) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt returns nonce||ciphertext.
func (s *Service) Encrypt(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, nil
	}
	if !s.Configured() {
		return plain, nil
	}
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func (s *Service) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	if !s.Configured() {
		return ciphertext, nil
	}
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, data := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, data, nil)
}

func (s *Service) DecryptString(value []byte) (string, error) {
	plain, err := s.Decrypt(value)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptDecimal seals an amount in its canonical string form.
func (s *Service) EncryptDecimal(value decimal.Decimal) ([]byte, error) {
	return s.Encrypt([]byte(value.String()))
}

func (s *Service) DecryptDecimal(value []byte) (decimal.Decimal, error) {
	plain, err := s.DecryptString(value)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(plain)
}

// decodeKey accepts hex, padded or raw base64, or the raw bytes.
func decodeKey(raw string) []byte {
	if len(raw) == 2*keySize {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil {
		return decoded
	}
	return []byte(raw)
}
