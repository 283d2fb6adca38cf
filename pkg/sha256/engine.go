// Package sha256 implements the SHA-256 message digest defined in FIPS 180-4
// as an explicit init / update / final state machine.
package sha256

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var (
	// ErrNotInitialized is returned by Update and Final before the first Init.
	ErrNotInitialized = errors.New("sha256: engine used before Init")
	// ErrFinalized is returned by Update and Final once Final has run.
	ErrFinalized = errors.New("sha256: engine used after Final without Init")
)

type phase uint8

const (
	phaseUninitialized phase = iota
	phaseReady
	phaseAbsorbing
	phaseFinalized
)

func (p phase) String() string {
	switch p {
	case phaseUninitialized:
		return "uninitialized"
	case phaseReady:
		return "ready"
	case phaseAbsorbing:
		return "absorbing"
	case phaseFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Engine holds the running state of one SHA-256 computation.
//
// The zero value is not usable until Init is called. An Engine must not be
// mutated from several goroutines at once; independent engines share nothing
// but the read-only round constants.
type Engine struct {
	h     [8]uint32
	buf   [BlockSize]byte
	nbuf  int
	bits  uint64
	phase phase
}

// NewEngine returns an initialised engine.
func NewEngine() *Engine {
	e := new(Engine)
	e.Init()
	return e
}

// Init resets the engine to the initial hash value with an empty buffer and
// a zero bit length. It may be called in any phase.
func (e *Engine) Init() {
	e.h = initial
	e.buf = [BlockSize]byte{}
	e.nbuf = 0
	e.bits = 0
	e.phase = phaseReady
}

// Reset is the same as Init.
func (e *Engine) Reset() { e.Init() }

// Update absorbs data into the running computation. Calling Update with
// c1, c2, ... cn yields the same digest as one call with their concatenation.
func (e *Engine) Update(data []byte) error {
	if err := e.usable(); err != nil {
		return err
	}
	e.phase = phaseAbsorbing
	e.bits += uint64(len(data)) << 3
	e.absorb(data)
	return nil
}

// Final pads the message, compresses the remaining block or blocks and
// returns the digest. The engine must be re-initialised before further use.
func (e *Engine) Final() ([Size]byte, error) {
	var digest [Size]byte
	if err := e.usable(); err != nil {
		return digest, err
	}

	e.pad()

	for i, v := range e.h {
		binary.BigEndian.PutUint32(digest[i*4:], v)
	}
	e.phase = phaseFinalized
	return digest, nil
}

func (e *Engine) usable() error {
	switch e.phase {
	case phaseReady, phaseAbsorbing:
		return nil
	case phaseFinalized:
		return errors.WithStack(ErrFinalized)
	default:
		return errors.WithStack(ErrNotInitialized)
	}
}

// absorb feeds p through the block buffer without touching the bit length.
func (e *Engine) absorb(p []byte) {
	if e.nbuf > 0 {
		n := copy(e.buf[e.nbuf:], p)
		e.nbuf += n
		p = p[n:]
		if e.nbuf < BlockSize {
			return
		}
		block(&e.h, e.buf[:])
		e.nbuf = 0
	}
	if len(p) >= BlockSize {
		n := len(p) &^ (BlockSize - 1)
		block(&e.h, p[:n])
		p = p[n:]
	}
	if len(p) > 0 {
		e.nbuf = copy(e.buf[:], p)
	}
}

// pad appends 0x80, zeros up to 56 mod 64 and the big-endian bit length
// recorded before padding. Afterwards the buffer is empty.
func (e *Engine) pad() {
	var tail [BlockSize + 8]byte
	tail[0] = 0x80

	n := lengthOffset - e.nbuf
	if e.nbuf >= lengthOffset {
		n += BlockSize
	}
	binary.BigEndian.PutUint64(tail[n:], e.bits)
	e.absorb(tail[:n+8])
}

// Sum256 returns the SHA-256 digest of data.
func Sum256(data []byte) [Size]byte {
	var e Engine
	e.Init()
	// Neither call can fail on a freshly initialised engine.
	_ = e.Update(data)
	digest, _ := e.Final()
	return digest
}
