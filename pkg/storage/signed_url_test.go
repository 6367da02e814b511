package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerIssueAndVerify(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, grant, err := signer.Issue("exp-1", "g-1/timetable.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := signer.Verify(token, false)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", parsed.ExportID)
	assert.Equal(t, "g-1/timetable.csv", parsed.Path)
	assert.True(t, grant.ExpiresAt.Equal(parsed.ExpiresAt))
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	base := time.Now()
	signer.now = func() time.Time { return base }
	token, _, err := signer.Issue("exp-1", "g-1/timetable.pdf")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = signer.Verify(token, false)
	assert.ErrorIs(t, err, ErrTokenExpired)

	grant, err := signer.Verify(token, true)
	require.NoError(t, err)
	assert.Equal(t, "g-1/timetable.pdf", grant.Path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Issue("exp-1", "g-1/timetable.csv")
	require.NoError(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Verify(token, false)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("not-a-token", false)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedURLSignerIssueValidation(t *testing.T) {
	signer := NewSignedURLSigner("secret", 0)
	assert.Equal(t, time.Hour, signer.TTL())

	_, _, err := signer.Issue("", "file.csv")
	assert.Error(t, err)
	_, _, err = signer.Issue("a.b", "file.csv")
	assert.Error(t, err)
	_, _, err = NewSignedURLSigner("", time.Hour).Issue("exp-1", "file.csv")
	assert.Error(t, err)
}
