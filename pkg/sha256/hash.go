package sha256

import "hash"

// digest adapts an Engine to hash.Hash.
type digest struct {
	e Engine
}

// New returns a hash.Hash computing SHA-256 with an Engine underneath.
// Sum finalises a copy of the engine, so writing may continue afterwards.
func New() hash.Hash {
	d := new(digest)
	d.e.Init()
	return d
}

func (d *digest) Write(p []byte) (int, error) {
	if err := d.e.Update(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *digest) Sum(in []byte) []byte {
	e := d.e
	sum, err := e.Final()
	if err != nil {
		// Unreachable: the adapter is initialised by New and Reset, and only
		// copies are ever finalised.
		panic(err)
	}
	return append(in, sum[:]...)
}

func (d *digest) Reset() { d.e.Init() }

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return BlockSize }
