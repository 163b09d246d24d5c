package data

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var (
	// ErrPassphraseRequired is returned when a sealed store is opened without
	// a passphrase.
	ErrPassphraseRequired = errors.New("profile store is sealed: passphrase required")
	// ErrWrongPassphrase is returned when the passphrase does not open the store.
	ErrWrongPassphrase = errors.New("profile store passphrase is incorrect")
	// ErrNotSealed is returned when a passphrase is given for a store that
	// already holds plain profiles.
	ErrNotSealed = errors.New("profile store holds unsealed profiles")
)

const (
	metaSalt  = "scrypt_salt"
	metaCheck = "seal_check"
	checkText = "buddy-profile-store"

	saltLen  = 16
	nonceLen = 24
	keyLen   = 32

	// scrypt cost parameters
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

type sealer struct {
	key [keyLen]byte
}

func newSealer(passphrase string, salt []byte) (*sealer, error) {
	raw, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	s := &sealer{}
	copy(s.key[:], raw)
	return s, nil
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *sealer) open(box []byte) ([]byte, error) {
	if len(box) < nonceLen+secretbox.Overhead {
		return nil, errors.New("sealed payload too short")
	}
	var nonce [nonceLen]byte
	copy(nonce[:], box[:nonceLen])
	plain, ok := secretbox.Open(nil, box[nonceLen:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("sealed payload failed authentication")
	}
	return plain, nil
}

// initSealing sets up or verifies the store key. A new store opened with a
// passphrase gets a fresh salt and a sealed check token in store_meta.
func (s *Store) initSealing(ctx context.Context, passphrase string) error {
	salt, err := s.meta(ctx, metaSalt)
	if err != nil {
		return err
	}

	if passphrase == "" {
		if salt != nil {
			return ErrPassphraseRequired
		}
		return nil
	}

	if salt == nil {
		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&count); err != nil {
			return fmt.Errorf("count profiles: %w", err)
		}
		if count > 0 {
			return ErrNotSealed
		}

		salt = make([]byte, saltLen)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("read salt: %w", err)
		}
		sl, err := newSealer(passphrase, salt)
		if err != nil {
			return err
		}
		check, err := sl.seal([]byte(checkText))
		if err != nil {
			return err
		}
		err = s.WithTx(ctx, func(tx *sql.Tx) error {
			for k, v := range map[string][]byte{metaSalt: salt, metaCheck: check} {
				if _, err := tx.ExecContext(ctx, "INSERT INTO store_meta (key, value) VALUES (?, ?)", k, v); err != nil {
					return fmt.Errorf("write %s: %w", k, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		s.sealer = sl
		return nil
	}

	sl, err := newSealer(passphrase, salt)
	if err != nil {
		return err
	}
	check, err := s.meta(ctx, metaCheck)
	if err != nil {
		return err
	}
	plain, err := sl.open(check)
	if err != nil || string(plain) != checkText {
		return ErrWrongPassphrase
	}
	s.sealer = sl
	return nil
}

func (s *Store) meta(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store meta %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) encode(plain []byte) ([]byte, error) {
	if s.sealer == nil {
		return plain, nil
	}
	return s.sealer.seal(plain)
}

func (s *Store) decode(stored []byte) ([]byte, error) {
	if s.sealer == nil {
		return stored, nil
	}
	return s.sealer.open(stored)
}
