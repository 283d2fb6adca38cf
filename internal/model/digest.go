package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/Heidric/digest.git/internal/crypto"
	"github.com/Heidric/digest.git/internal/customerrors"
)

// MaxNameLength bounds registered digest names.
const MaxNameLength = 255

// Digest is a named SHA-256 record.
// SHA256 holds the lowercase hex digest and Size the number of hashed bytes.
type Digest struct {
	Name      string    `json:"name"`
	SHA256    string    `json:"sha256"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Computed is the response of an anonymous digest computation.
type Computed struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Verification reports whether a body matched a registered digest.
type Verification struct {
	Name   string `json:"name"`
	Match  bool   `json:"match"`
	SHA256 string `json:"sha256"`
}

// ValidateName checks a digest name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || len(name) > MaxNameLength || !utf8.ValidString(name) {
		return errors.WithStack(customerrors.ErrInvalidName)
	}
	return nil
}

// Validate checks the record and normalises the digest to lowercase.
func (d *Digest) Validate() error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	sum, err := crypto.ParseHex(d.SHA256)
	if err != nil {
		return err
	}
	if d.Size < 0 {
		return errors.Wrap(customerrors.ErrInvalidDigest, "negative size")
	}
	d.SHA256 = sum.String()
	return nil
}
