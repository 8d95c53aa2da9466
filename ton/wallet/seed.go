package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	_Iterations         = 100000
	_Salt               = "TON default seed"
	_BasicSalt          = "TON seed version"
	_BasicIterations    = _Iterations / 256
	_PasswordSalt       = "TON fast seed version"
	_PasswordIterations = 1
)

var (
	ErrBadSeedLen        = errors.New("seed must consist of 24 words")
	ErrSeedNotValid      = errors.New("seed validation check failed")
	ErrPasswordNotNeeded = errors.New("this seed is not protected with a password")
)

// FromSeed derives the ed25519 keypair from a 24-word mnemonic.
func FromSeed(seed []string) (ed25519.PrivateKey, error) {
	return FromSeedWithPassword(seed, "")
}

// FromSeedWithPassword derives the ed25519 keypair from a mnemonic and
// an optional seed password. Derivation is deterministic; whether the
// words form a valid seed is checked separately by Validate.
func FromSeedWithPassword(seed []string, password string) (ed25519.PrivateKey, error) {
	if err := checkWords(seed); err != nil {
		return nil, err
	}

	mac := hmac.New(sha512.New, []byte(strings.Join(seed, " ")))
	mac.Write([]byte(password))
	hash := mac.Sum(nil)

	k := pbkdf2.Key(hash, []byte(_Salt), _Iterations, 32, sha512.New)

	return ed25519.NewKeyFromSeed(k), nil
}

// Validate runs the seed-version check over the mnemonic: password
// seeds must carry the fast-seed marker, passwordless seeds the basic
// marker. Wallet imports should call it before storing a mnemonic.
func Validate(seed []string, password string) error {
	if err := checkWords(seed); err != nil {
		return err
	}

	mac := hmac.New(sha512.New, []byte(strings.Join(seed, " ")))
	mac.Write([]byte(""))
	hash := mac.Sum(nil)

	if password != "" {
		p := pbkdf2.Key(hash, []byte(_PasswordSalt), _PasswordIterations, 1, sha512.New)
		if p[0] != 1 {
			return ErrPasswordNotNeeded
		}
		return nil
	}

	p := pbkdf2.Key(hash, []byte(_BasicSalt), _BasicIterations, 1, sha512.New)
	if p[0] != 0 {
		return ErrSeedNotValid
	}
	return nil
}

func checkWords(seed []string) error {
	if len(seed) != 24 {
		return ErrBadSeedLen
	}

	for _, w := range seed {
		if w == "" || w != strings.ToLower(strings.TrimSpace(w)) {
			return fmt.Errorf("%w: malformed word %q", ErrSeedNotValid, w)
		}
	}
	return nil
}
