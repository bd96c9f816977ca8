package secret_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defisafe/hotwallet/internal/secret"
)

func TestFromBytesWipesSource(t *testing.T) {
	src := []byte{1, 2, 3, 4}

	b := secret.FromBytes(src)
	defer b.Wipe()

	assert.Equal(t, []byte{0, 0, 0, 0}, src)
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Bytes())
	assert.Equal(t, 4, b.Len())
}

func TestWipeReleasesBuffer(t *testing.T) {
	b := secret.FromBytes([]byte{9, 9, 9})
	view := b.Bytes()

	b.Wipe()

	assert.Nil(t, b.Bytes())
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, []byte{0, 0, 0}, view)

	// Wipe is idempotent and nil-safe.
	b.Wipe()
	var nilBuf *secret.Buf
	nilBuf.Wipe()
}

func TestRandomIsFilled(t *testing.T) {
	b, err := secret.Random(32)
	require.NoError(t, err)
	defer b.Wipe()

	require.Equal(t, 32, b.Len())

	var zero [32]byte
	assert.NotEqual(t, zero[:], b.Bytes())
}
