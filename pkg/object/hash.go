package object

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// Hash is a lowercase hex-encoded object id, either 40 characters (SHA-1)
// or 64 characters (SHA-256).
type Hash string

// Kind identifies the hash function an id was produced with.
type Kind int

const (
	SHA1 Kind = iota + 1
	SHA256
)

// ObjectType identifies the kind of object an id was computed for.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

var ErrInvalidHash = errors.New("invalid object hash")

func (k Kind) String() string {
	switch k {
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// HexLen is the length of a hex-encoded id of this kind.
func (k Kind) HexLen() int {
	switch k {
	case SHA1:
		return 40
	case SHA256:
		return 64
	default:
		return 0
	}
}

func (k Kind) new() hash.Hash {
	if k == SHA1 {
		return sha1.New()
	}
	return sha256.New()
}

// ParseKind maps a configuration value such as "sha1" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sha1", "sha-1":
		return SHA1, nil
	case "", "sha256", "sha-256":
		return SHA256, nil
	}
	return 0, fmt.Errorf("unknown hash kind %q", s)
}

// ParseHash validates s as a full hex object id of either supported kind.
func ParseHash(s string) (Hash, error) {
	if len(s) != SHA1.HexLen() && len(s) != SHA256.HexLen() {
		return "", fmt.Errorf("%w: %q has length %d", ErrInvalidHash, s, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidHash, s, c)
		}
	}
	return Hash(s), nil
}

// NullHash returns the all-zero id of the given kind.
func NullHash(k Kind) Hash {
	return Hash(strings.Repeat("0", k.HexLen()))
}

// Kind reports the hash kind based on the id's length.
func (h Hash) Kind() Kind {
	switch len(h) {
	case 40:
		return SHA1
	case 64:
		return SHA256
	default:
		return 0
	}
}

// IsZero reports whether h is empty or the all-zero id.
func (h Hash) IsZero() bool {
	return strings.Trim(string(h), "0") == ""
}

func (h Hash) String() string {
	return string(h)
}

// Short returns the first n characters of the id.
func (h Hash) Short(n int) string {
	if len(h) <= n {
		return string(h)
	}
	return string(h[:n])
}

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the id of the envelope "type len\0content" using the
// given hash kind, the same way git does.
func HashObject(k Kind, objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := k.new()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}
