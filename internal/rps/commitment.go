package rps

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// Commitment is keccak256(uint8(move) || secret). The zero value means
// "not committed yet".
type Commitment [32]byte

// Secret is the 32-byte salt hidden inside a commitment.
type Secret [32]byte

// Commit computes the commitment binding move and secret. The preimage is
// the tightly packed (uint8, bytes32) pair used by the original contract.
func Commit(move Move, secret Secret) Commitment {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{byte(move)})
	h.Write(secret[:])
	var c Commitment
	copy(c[:], h.Sum(nil))
	return c
}

// Verify reports whether (move, secret) opens c.
func (c Commitment) Verify(move Move, secret Secret) bool {
	return !c.IsZero() && Commit(move, secret) == c
}

func (c Commitment) IsZero() bool { return c == Commitment{} }

func (c Commitment) String() string { return "0x" + hex.EncodeToString(c[:]) }

func (c Commitment) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return []byte{}, nil
	}
	return []byte(c.String()), nil
}

func (c *Commitment) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*c = Commitment{}
		return nil
	}
	raw, err := decodeHex32(string(b))
	if err != nil {
		return errors.Wrap(err, "commitment")
	}
	*c = Commitment(raw)
	return nil
}

// SecretFromString right-pads s with zero bytes, the same way
// ethers.encodeBytes32String builds salts.
func SecretFromString(s string) (Secret, error) {
	var sec Secret
	if len(s) > len(sec) {
		return sec, errors.Errorf("secret longer than %d bytes", len(sec))
	}
	copy(sec[:], s)
	return sec, nil
}

// ParseSecret accepts a 0x-prefixed 32-byte hex string or a short text salt.
func ParseSecret(s string) (Secret, error) {
	if strings.HasPrefix(s, "0x") && len(s) == 66 {
		raw, err := decodeHex32(s)
		if err != nil {
			return Secret{}, errors.Wrap(err, "secret")
		}
		return Secret(raw), nil
	}
	return SecretFromString(s)
}

func (s Secret) String() string { return "0x" + hex.EncodeToString(s[:]) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Secret) UnmarshalText(b []byte) error {
	parsed, err := ParseSecret(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return out, errors.Errorf("expected 32 bytes of hex, got %d characters", len(s))
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, errors.Wrap(err, "decode hex")
	}
	return out, nil
}
