// Package keystore keeps wallet mnemonics in a passphrase-encrypted
// file. The key is derived with scrypt and the words are sealed with
// AES-256-GCM, so a wrong passphrase is detected by authentication
// failure rather than by producing garbage.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12
)

var (
	ErrWrongPassword = errors.New("wrong passphrase")
	ErrUnknownKey    = errors.New("no secret stored for this public key")
)

type storeFile struct {
	PublicKey  string `json:"public_key"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipher_text"`
}

// Store reads and writes one encrypted mnemonic file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// GetSecret decrypts the stored mnemonic for pub. A failed GCM open
// means the passphrase is wrong.
func (s *Store) GetSecret(pub ed25519.PublicKey, passphrase []byte) ([]string, error) {
	f, err := s.read()
	if err != nil {
		return nil, err
	}

	if f.PublicKey != hex.EncodeToString(pub) {
		return nil, ErrUnknownKey
	}

	salt, err := base64.StdEncoding.DecodeString(f.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	nonce, err := base64.StdEncoding.DecodeString(f.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(f.CipherText)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aesGCM, err := buildCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	defer clear(plaintext)

	return strings.Fields(string(plaintext)), nil
}

// PutSecret encrypts the mnemonic under passphrase and writes the
// store file with owner-only permissions.
func (s *Store) PutSecret(pub ed25519.PublicKey, words []string, passphrase []byte) error {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	aesGCM, err := buildCipher(passphrase, salt)
	if err != nil {
		return err
	}

	plaintext := []byte(strings.Join(words, " "))
	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)
	clear(plaintext)

	data, err := json.MarshalIndent(storeFile{
		PublicKey:  hex.EncodeToString(pub),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store file: %w", err)
	}

	if err = os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}

	return nil
}

// PublicKey reads the stored public key without decrypting anything.
func (s *Store) PublicKey() (ed25519.PublicKey, error) {
	f, err := s.read()
	if err != nil {
		return nil, err
	}

	pub, err := hex.DecodeString(f.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("malformed public key in store file")
	}

	return pub, nil
}

func (s *Store) read() (*storeFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var f storeFile
	if err = json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal store file: %w", err)
	}

	return &f, nil
}

func buildCipher(passphrase, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return cipher.NewGCM(block)
}
