package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

var encoding = base64.RawURLEncoding

func (m *Manager) sign(value string) string {
	return encoding.EncodeToString([]byte(value)) + "." + encoding.EncodeToString(mac(m.secrets[0], value))
}

func (m *Manager) verify(signed string) (string, error) {
	payload, sig, ok := strings.Cut(signed, ".")
	if !ok {
		return "", ErrInvalidFormat
	}
	value, err := encoding.DecodeString(payload)
	if err != nil {
		return "", ErrInvalidFormat
	}
	want, err := encoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidFormat
	}
	for _, secret := range m.secrets {
		if hmac.Equal(want, mac(secret, string(value))) {
			return string(value), nil
		}
	}
	return "", ErrInvalidSignature
}

func (m *Manager) encrypt(value string) (string, error) {
	gcm, err := aead(m.secrets[0])
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return encoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(value), nil)), nil
}

func (m *Manager) decrypt(encrypted string) (string, error) {
	raw, err := encoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrInvalidFormat
	}
	for _, secret := range m.secrets {
		gcm, err := aead(secret)
		if err != nil || len(raw) < gcm.NonceSize() {
			continue
		}
		nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
		if plain, err := gcm.Open(nil, nonce, sealed, nil); err == nil {
			return string(plain), nil
		}
	}
	return "", ErrDecryptionFailed
}

func mac(secret, value string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(value))
	return h.Sum(nil)
}

// aead derives a 256-bit key from the secret.
func aead(secret string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
