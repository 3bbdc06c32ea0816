package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer() TokenIssuer {
	return NewTokenIssuer("access-secret", "refresh-secret", 15, 7)
}

func TestIssuePairRoundTrip(t *testing.T) {
	issuer := testIssuer()

	pair, err := issuer.IssuePair(42, "angler")
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access.Token, pair.Refresh.Token)

	userID, role, err := issuer.ParseAccess(pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), userID)
	assert.Equal(t, "angler", role)

	refreshUser, err := issuer.ParseRefresh(pair.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), refreshUser)
}

func TestPairsAreUniquePerIssue(t *testing.T) {
	issuer := testIssuer()

	a, err := issuer.IssuePair(1, "angler")
	require.NoError(t, err)
	b, err := issuer.IssuePair(1, "angler")
	require.NoError(t, err)

	// same user, same second: jti must still make the tokens distinct
	assert.NotEqual(t, a.Access.Token, b.Access.Token)
	assert.NotEqual(t, a.Refresh.Token, b.Refresh.Token)
}

func TestAccessTokenRejectedAsRefresh(t *testing.T) {
	issuer := testIssuer()

	pair, err := issuer.IssuePair(7, "angler")
	require.NoError(t, err)

	_, err = issuer.ParseRefresh(pair.Access.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	issuer := testIssuer()

	pair, err := issuer.IssuePair(7, "angler")
	require.NoError(t, err)

	_, _, err = issuer.ParseAccess(pair.Refresh.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshSignedWithAccessSecretRejected(t *testing.T) {
	issuer := testIssuer()

	// correct claims but wrong key: the type discriminator alone is not
	// enough to cross the secret boundary
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  float64(7),
		"type": "refresh",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	token, err := forged.SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, err = issuer.ParseRefresh(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestExpiredTokenReportsExpiry(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  float64(7),
		"role": "angler",
		"iat":  time.Now().Add(-2 * time.Hour).Unix(),
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})
	token, err := expired.SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, _, err = testIssuer().ParseAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestUnsignedAlgorithmRejected(t *testing.T) {
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  float64(7),
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	token, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = testIssuer().ParseAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestGarbageTokensRejected(t *testing.T) {
	issuer := testIssuer()
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, _, err := issuer.ParseAccess(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", tok)
	}
}
