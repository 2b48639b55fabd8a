package session

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/credcore/internal/clock"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *models.Session {
	return &models.Session{
		SessionID: "sid-1",
		UserID:    "u1",
		CreatedAt: t0,
		ExpiresAt: t0.Add(24 * time.Hour),
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clk := clock.NewFake(t0.Add(time.Hour))
	iss := NewTokenIssuer([]byte("super-secret"), clk)

	tok, err := iss.Issue(testSession())
	require.NoError(t, err)

	sid, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", sid)
}

func TestTokenIssuer_Expired(t *testing.T) {
	clk := clock.NewFake(t0)
	iss := NewTokenIssuer([]byte("secret"), clk)

	tok, err := iss.Issue(testSession())
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)
	_, err = iss.Parse(tok)
	require.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestTokenIssuer_WrongSecretOrGarbage(t *testing.T) {
	clk := clock.NewFake(t0)

	tok, err := NewTokenIssuer([]byte("right-secret"), clk).Issue(testSession())
	require.NoError(t, err)

	_, err = NewTokenIssuer([]byte("wrong-secret"), clk).Parse(tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = NewTokenIssuer([]byte("right-secret"), clk).Parse("not-a-jwt")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	clk := clock.NewFake(t0)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour))},
		SessionID:        "sid-1",
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer([]byte("secret"), clk).Parse(tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}
