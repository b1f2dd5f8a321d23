package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumehub/resumehub/internal/shared"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T, ttl time.Duration) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, ttl)
	require.NoError(t, err)
	return codec
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	_, err := NewCodec("too-short", time.Hour)
	require.Error(t, err)
}

func TestIssueRoundTrip(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	raw, err := codec.Issue("a@x.com", 42)
	require.NoError(t, err)

	subject, err := codec.Subject(raw)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", subject)

	userID, err := codec.UserID(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	assert.True(t, codec.Verify(raw))
}

func TestVerifyFalseAfterExpiry(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	now := time.Now()
	codec.WithNow(func() time.Time { return now })

	raw, err := codec.Issue("a@x.com", 1)
	require.NoError(t, err)
	assert.True(t, codec.Verify(raw))

	codec.WithNow(func() time.Time { return now.Add(time.Hour + time.Minute) })
	assert.False(t, codec.Verify(raw))
}

func TestClaimAccessorsWorkOnExpiredToken(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	now := time.Now()
	codec.WithNow(func() time.Time { return now })
	raw, err := codec.Issue("a@x.com", 7)
	require.NoError(t, err)

	codec.WithNow(func() time.Time { return now.Add(2 * time.Hour) })

	expiresAt, err := codec.ExpiresAt(raw)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour), expiresAt, time.Second)

	subject, err := codec.Subject(raw)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", subject)
}

func TestDecodeRejectsGarbageAndTampering(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	_, err := codec.Subject("not-a-token")
	assert.ErrorIs(t, err, shared.ErrMalformedToken)

	_, err = codec.ExpiresAt("")
	assert.ErrorIs(t, err, shared.ErrMalformedToken)

	raw, err := codec.Issue("a@x.com", 1)
	require.NoError(t, err)
	tampered := raw + "xx"
	_, err = codec.UserID(tampered)
	assert.ErrorIs(t, err, shared.ErrMalformedToken)
	assert.False(t, codec.Verify(tampered))
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	codec := newTestCodec(t, time.Hour)
	other, err := NewCodec("ffffffffffffffffffffffffffffffff", time.Hour)
	require.NoError(t, err)

	raw, err := other.Issue("a@x.com", 1)
	require.NoError(t, err)

	assert.False(t, codec.Verify(raw))
	_, err = codec.Subject(raw)
	assert.ErrorIs(t, err, shared.ErrMalformedToken)
}
