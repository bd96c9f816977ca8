package keystore_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/wallet/keystore"
)

func TestValidatePasswordDefaultPolicy(t *testing.T) {
	policy := keystore.DefaultPasswordPolicy()

	require.NoError(t, keystore.ValidatePassword("Abcdef12", policy))
	require.NoError(t, keystore.ValidatePassword("Str0ng!Pass", policy))

	cases := []string{
		"",
		"Ab1",
		"alllowercase1",
		"ALLUPPERCASE1",
		"NoDigitsHere",
	}
	for _, password := range cases {
		err := keystore.ValidatePassword(password, policy)
		assert.True(t, errors.Is(err, errs.ErrValidation), "password: %q", password)
	}
}

func TestValidatePasswordStrictPolicy(t *testing.T) {
	policy := keystore.StrictPasswordPolicy()

	// Long enough and all classes, but no special character.
	err := keystore.ValidatePassword("Abcdefgh1234", policy)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	require.NoError(t, keystore.ValidatePassword("Abcdefgh123!", policy))
}

func TestPasswordVerifierIsDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	a := keystore.PasswordVerifier("Str0ng!Pass", salt, 1000)
	defer a.Wipe()
	b := keystore.PasswordVerifier("Str0ng!Pass", salt, 1000)
	defer b.Wipe()
	c := keystore.PasswordVerifier("Different1!", salt, 1000)
	defer c.Wipe()

	assert.Equal(t, a.Bytes(), b.Bytes())
	assert.NotEqual(t, a.Bytes(), c.Bytes())
	assert.Len(t, a.Bytes(), 32)
}
