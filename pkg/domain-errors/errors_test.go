package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeUserRejected, "rejected")
		assert.True(t, HasCode(err, CodeUserRejected))
		assert.False(t, HasCode(err, CodeRequestPending))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("connect: %w", New(CodeRequestPending, "pending"))
		assert.True(t, HasCode(err, CodeRequestPending))
	})

	t.Run("matches inner code of nested coded errors", func(t *testing.T) {
		inner := New(CodeNotFound, "missing")
		err := Wrap(inner, CodePersistenceFailure, "failed to load profile")
		assert.True(t, HasCode(err, CodePersistenceFailure))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrapAndMessages(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	err := Wrap(cause, CodePersistenceFailure, "failed to save profile")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to save profile: dial tcp: refused", err.Error())
	assert.Equal(t, "failed to save profile", MessageOf(err))
	assert.Equal(t, CodePersistenceFailure, CodeOf(err))

	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("uncoded")))
	assert.Equal(t, "uncoded", MessageOf(errors.New("uncoded")))
	assert.Equal(t, "", MessageOf(nil))
}
