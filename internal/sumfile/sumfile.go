// Package sumfile reads and writes checksum listings in the format produced
// by sha256sum: the hex digest, a separator and the file name.
package sumfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/Heidric/digest.git/internal/crypto"
)

// Entry is one line of a checksum listing.
type Entry struct {
	Sum    crypto.Sum
	Name   string
	Binary bool
}

// Format writes one listing line for name.
func Format(w io.Writer, sum crypto.Sum, name string) error {
	_, err := fmt.Fprintf(w, "%s  %s\n", sum, name)
	return err
}

// Parse reads a listing. Blank lines and lines starting with '#' are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		entry, err := parseLine(text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read listing")
	}
	return entries, nil
}

func parseLine(text string) (Entry, error) {
	const hexLen = 64

	// digest, space, then ' ' for text mode or '*' for binary mode
	if len(text) < hexLen+3 || text[hexLen] != ' ' {
		return Entry{}, errors.Errorf("malformed line %q", text)
	}

	sum, err := crypto.ParseHex(text[:hexLen])
	if err != nil {
		return Entry{}, err
	}

	var binary bool
	switch text[hexLen+1] {
	case ' ':
	case '*':
		binary = true
	default:
		return Entry{}, errors.Errorf("bad mode marker %q", text[hexLen+1])
	}

	return Entry{Sum: sum, Name: text[hexLen+2:], Binary: binary}, nil
}
