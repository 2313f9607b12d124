package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = []byte("0123456789abcdef")

func newSigner(t *testing.T, ttl time.Duration, audience string, now time.Time) *Signer {
	t.Helper()
	s, err := NewSigner(key, ttl, audience)
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newSigner(t, time.Hour, AudienceAPI, now)

	raw, err := s.Issue(7)
	require.NoError(t, err)

	id, err := s.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
}

func TestParseExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newSigner(t, time.Minute, AudienceAPI, now)
	raw, err := s.Issue(7)
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = s.Parse(raw)
	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestParseInvalid(t *testing.T) {
	now := time.Now()
	s := newSigner(t, time.Hour, AudienceAPI, now)

	other, err := NewSigner([]byte("another key"), time.Hour, AudienceAPI)
	require.NoError(t, err)
	foreign, err := other.Issue(7)
	require.NoError(t, err)

	session := newSigner(t, time.Hour, AudienceSession, now)
	cookie, err := session.Issue(7)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{AudienceAPI},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(key)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "7",
		Audience: jwt.ClaimStrings{AudienceAPI},
	}).SignedString(key)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":        "not-a-token",
		"wrong key":      foreign,
		"wrong audience": cookie,
		"no subject":     noSubject,
		"no expiry":      noExpiry,
		"alg none":       "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiI3In0.",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Parse(raw)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestNewSignerRequiresKey(t *testing.T) {
	_, err := NewSigner(nil, time.Hour, AudienceAPI)
	assert.Error(t, err)
}

func TestSessions(t *testing.T) {
	s := newSigner(t, 30*time.Minute, AudienceSession, time.Now())
	sessions := NewSessions(s, true)

	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Start(rec, 3))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, 1800, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookies[0])
	id, err := sessions.User(req)
	require.NoError(t, err)
	assert.Equal(t, uint(3), id)

	anonymous := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	id, err = sessions.User(anonymous)
	require.NoError(t, err)
	assert.Zero(t, id)

	rec = httptest.NewRecorder()
	sessions.End(rec)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
