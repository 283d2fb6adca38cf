package crypto

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/Heidric/digest.git/internal/customerrors"
	"github.com/Heidric/digest.git/pkg/sha256"
)

// DefaultChunkSize is the read size used when streaming input into the engine.
const DefaultChunkSize = 64 << 10

// Sum is a raw SHA-256 digest.
type Sum [sha256.Size]byte

// String returns the lowercase hex form.
func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// HashSHA256 returns the lowercase hex SHA-256 digest of data.
func HashSHA256(data []byte) string {
	return Sum(sha256.Sum256(data)).String()
}

// HashReader streams r through a single engine in chunk-sized updates and
// returns the digest together with the number of bytes read. The context is
// checked between chunks.
func HashReader(ctx context.Context, r io.Reader, chunk int) (Sum, int64, error) {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	e := sha256.NewEngine()
	buf := make([]byte, chunk)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return Sum{}, total, errors.WithStack(err)
		}

		n, err := r.Read(buf)
		if n > 0 {
			if uerr := e.Update(buf[:n]); uerr != nil {
				return Sum{}, total, uerr
			}
			total += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Sum{}, total, errors.Wrap(err, "read input")
		}
	}

	sum, err := e.Final()
	if err != nil {
		return Sum{}, total, err
	}
	return Sum(sum), total, nil
}

// HashFile streams the file at path through HashReader.
func HashFile(ctx context.Context, path string, chunk int) (Sum, int64, error) {
	fd, err := os.Open(path)
	if err != nil {
		return Sum{}, 0, errors.Wrap(err, "open file")
	}
	defer fd.Close()

	return HashReader(ctx, fd, chunk)
}

// ParseHex decodes a 64 character hex digest, accepting either case.
func ParseHex(s string) (Sum, error) {
	var sum Sum
	if len(s) != 2*sha256.Size {
		return sum, errors.Wrapf(customerrors.ErrInvalidDigest, "length %d", len(s))
	}
	if _, err := hex.Decode(sum[:], []byte(s)); err != nil {
		return Sum{}, errors.Wrap(customerrors.ErrInvalidDigest, err.Error())
	}
	return sum, nil
}

// Equal compares two digests in constant time.
func Equal(a, b Sum) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
