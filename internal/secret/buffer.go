// Package secret provides the zero-on-release byte buffer that carries all
// plaintext key material in the wallet core. A Buf is owned by exactly one
// call stack and wiped on every exit path.
package secret

import (
	"crypto/rand"

	"github.com/pkg/errors"
)

// Buf is a byte buffer that guarantees its contents are overwritten with
// zeroes when released. Wipe is idempotent.
type Buf struct {
	data  []byte
	wiped bool
}

// New allocates a zeroed buffer of n bytes.
func New(n int) *Buf {
	return &Buf{data: make([]byte, n)}
}

// Random allocates a buffer of n bytes filled from crypto/rand.
func Random(n int) (*Buf, error) {
	b := New(n)
	if _, err := rand.Read(b.data); err != nil {
		return nil, errors.Wrap(err, "failed to read entropy")
	}

	return b, nil
}

// FromBytes copies src into a new buffer and wipes src in place, so the
// secret keeps a single owner.
func FromBytes(src []byte) *Buf {
	b := New(len(src))
	copy(b.data, src)
	Wipe(src)

	return b
}

// Bytes returns the underlying slice. It is a view, not a copy: callers must
// not retain it past the buffer's lifetime. Returns nil after Wipe.
func (b *Buf) Bytes() []byte {
	if b.wiped {
		return nil
	}

	return b.data
}

// Len returns the buffer length, or 0 after Wipe.
func (b *Buf) Len() int {
	if b.wiped {
		return 0
	}

	return len(b.data)
}

// Wipe overwrites the contents with zeroes and marks the buffer released.
func (b *Buf) Wipe() {
	if b == nil || b.wiped {
		return
	}

	Wipe(b.data)
	b.data = nil
	b.wiped = true
}

// Wipe zeroes a raw slice in place.
func Wipe(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
