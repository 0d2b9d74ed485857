// Package keyring checks repository signing keys supplied by the operator
// before they are copied to a host and handed to apt-key.
package keyring

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
)

var (
	ErrNoKeys     = errors.New("no OpenPGP public keys found")
	ErrPrivateKey = errors.New("key material contains a private key")
)

// KeyInfo summarises one public key of a key file.
type KeyInfo struct {
	Fingerprint string    `yaml:"fingerprint"`
	KeyID       string    `yaml:"key_id"`
	Identities  []string  `yaml:"identities"`
	Created     time.Time `yaml:"created"`
	Revoked     bool      `yaml:"revoked,omitempty"`
}

func (k KeyInfo) String() string {
	return fmt.Sprintf("%s %s", k.KeyID, strings.Join(k.Identities, ", "))
}

// Inspect parses an armored or binary key file. Private keys are refused
// since the file ends up readable on the target host.
func Inspect(data []byte) ([]KeyInfo, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		var binErr error
		entities, binErr = openpgp.ReadKeyRing(bytes.NewReader(data))
		if binErr != nil {
			return nil, fmt.Errorf("not an OpenPGP key: %w", err)
		}
	}
	if len(entities) == 0 {
		return nil, ErrNoKeys
	}

	now := time.Now()
	keys := make([]KeyInfo, 0, len(entities))
	for _, entity := range entities {
		if entity.PrivateKey != nil {
			return nil, ErrPrivateKey
		}

		identities := make([]string, 0, len(entity.Identities))
		for name := range entity.Identities {
			identities = append(identities, name)
		}
		sort.Strings(identities)

		keys = append(keys, KeyInfo{
			Fingerprint: strings.ToUpper(hex.EncodeToString(entity.PrimaryKey.Fingerprint)),
			KeyID:       entity.PrimaryKey.KeyIdString(),
			Identities:  identities,
			Created:     entity.PrimaryKey.CreationTime,
			Revoked:     entity.Revoked(now),
		})
	}
	return keys, nil
}
