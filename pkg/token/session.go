package token

import (
	"net/http"
	"time"
)

// CookieName is the page session cookie.
const CookieName = "enms_session"

// Sessions keeps the logged in user of page requests in a signed cookie.
type Sessions struct {
	signer *Signer
	secure bool
}

// NewSessions stores sessions signed by signer. Set secure when the
// server is only reached over TLS.
func NewSessions(signer *Signer, secure bool) *Sessions {
	return &Sessions{signer: signer, secure: secure}
}

// Start writes a session cookie for userID.
func (s *Sessions) Start(w http.ResponseWriter, userID uint) error {
	value, err := s.signer.Issue(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.signer.TTL() / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// User returns the user id of the request's session. A request without
// a cookie returns 0 and no error.
func (s *Sessions) User(r *http.Request) (uint, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return 0, nil
	}
	return s.signer.Parse(cookie.Value)
}

// End removes the session cookie.
func (s *Sessions) End(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
