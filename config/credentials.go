package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

// The API key is stored encrypted at rest. A random machine-local secret
// (0600) seeds scrypt, which derives the AES-256-GCM key. This protects the
// credential from casual reads and accidental backups of the data directory,
// not from an attacker with full access to the same account.

const (
	secretFileName      = "credentials.key"
	credentialsFileName = "credentials.enc"

	secretLen = 32
	saltLen   = 16

	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// LoadAPIKey returns the stored API key, or "" when none is stored.
func LoadAPIKey(dataDir string) (string, error) {
	credPath := filepath.Join(dataDir, credentialsFileName)
	blob, err := os.ReadFile(credPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read credentials: %w", err)
	}

	secret, err := loadSecret(dataDir)
	if err != nil {
		return "", err
	}

	if len(blob) < saltLen {
		return "", fmt.Errorf("credentials file is corrupt")
	}
	salt := blob[:saltLen]
	ciphertext := blob[saltLen:]

	key, err := deriveKey(secret, salt)
	if err != nil {
		return "", err
	}

	plaintext, err := decryptAESGCM(ciphertext, key)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt API key: %w", err)
	}

	return string(plaintext), nil
}

// SaveAPIKey encrypts and stores the API key under dataDir.
func SaveAPIKey(dataDir, apiKey string) error {
	secret, err := loadOrCreateSecret(dataDir)
	if err != nil {
		return err
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := deriveKey(secret, salt)
	if err != nil {
		return err
	}

	ciphertext, err := encryptAESGCM([]byte(apiKey), key)
	if err != nil {
		return fmt.Errorf("failed to encrypt API key: %w", err)
	}

	blob := append(salt, ciphertext...)
	credPath := filepath.Join(dataDir, credentialsFileName)
	if err := os.WriteFile(credPath, blob, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	return nil
}

// DeleteAPIKey removes the stored API key.
func DeleteAPIKey(dataDir string) error {
	credPath := filepath.Join(dataDir, credentialsFileName)
	if err := os.Remove(credPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

func loadSecret(dataDir string) ([]byte, error) {
	secretPath := filepath.Join(dataDir, secretFileName)
	secret, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential secret: %w", err)
	}
	if len(secret) != secretLen {
		return nil, fmt.Errorf("credential secret has wrong length")
	}
	return secret, nil
}

func loadOrCreateSecret(dataDir string) ([]byte, error) {
	secretPath := filepath.Join(dataDir, secretFileName)
	if FileExists(secretPath) {
		return loadSecret(dataDir)
	}

	secret := make([]byte, secretLen)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("failed to generate credential secret: %w", err)
	}
	// 0600 - losing this file makes the stored key unrecoverable
	if err := os.WriteFile(secretPath, secret, 0600); err != nil {
		return nil, fmt.Errorf("failed to write credential secret: %w", err)
	}
	return secret, nil
}

func deriveKey(secret, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(secret, salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	return key, nil
}

// encryptAESGCM encrypts data using AES-256-GCM
// Format: [nonce (12 bytes)][ciphertext + tag]
func encryptAESGCM(plaintext, key []byte) ([]byte, error) {
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

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decryptAESGCM decrypts data using AES-256-GCM
// Expects format: [nonce (12 bytes)][ciphertext + tag]
func decryptAESGCM(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:nonceSize]
	ciphertextData := ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertextData, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}
