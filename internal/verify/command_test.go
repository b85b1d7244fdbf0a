package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	cmd, err := ParseText("/verify abc-123")
	require.NoError(t, err)
	assert.Equal(t, VerbVerify, cmd.Verb)
	assert.Equal(t, "abc-123", cmd.SessionID)

	cmd, err = ParseText("/reject@BookpayBot abc-123")
	require.NoError(t, err)
	assert.Equal(t, VerbReject, cmd.Verb)
	assert.Equal(t, "abc-123", cmd.SessionID)

	cmd, err = ParseText("  /verify   abc-123   extra ")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", cmd.SessionID)
}

func TestParseTextMissingArgument(t *testing.T) {
	cmd, err := ParseText("/verify")
	require.ErrorIs(t, err, ErrMissingArgument)
	assert.Equal(t, VerbVerify, cmd.Verb)
}

func TestParseTextUnknown(t *testing.T) {
	for _, text := range []string{"", "hello", "/start", "/approve abc", "verify abc"} {
		_, err := ParseText(text)
		assert.ErrorIs(t, err, ErrUnknownCommand, "text %q", text)
	}
}

func TestParseCallback(t *testing.T) {
	cmd, err := ParseCallback("verify_9f2c-11")
	require.NoError(t, err)
	assert.Equal(t, VerbVerify, cmd.Verb)
	assert.Equal(t, "9f2c-11", cmd.SessionID)

	cmd, err = ParseCallback("reject_9f2c-11")
	require.NoError(t, err)
	assert.Equal(t, VerbReject, cmd.Verb)
}

func TestParseCallbackRejectsMalformed(t *testing.T) {
	_, err := ParseCallback("verify-9f2c")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = ParseCallback("approve_9f2c")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = ParseCallback("verify_")
	assert.ErrorIs(t, err, ErrMissingArgument)
}

func TestTargetStatusCoversAllVerbs(t *testing.T) {
	assert.Len(t, targetStatus, 2)
	assert.Contains(t, targetStatus, VerbVerify)
	assert.Contains(t, targetStatus, VerbReject)
}
