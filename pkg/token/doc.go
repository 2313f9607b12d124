// Package token issues and verifies the HS256 JSON Web Tokens used as
// REST bearer tokens and as page session cookies.
//
// Both carry the user id as subject plus issued-at and expiry claims.
// Parse tells an expired token (ErrExpired) apart from every other
// failure (ErrInvalid).
package token
