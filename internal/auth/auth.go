// Package auth issues and verifies the daemon's bearer tokens and checks
// credentials against the credentials collection.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/gauciv/triji-app-admin-dashboard/internal/engine"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/session"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// Sign-in failures, shared with the session layer so errors.Is gives the
// same answer in embedded and remote mode.
var (
	ErrInvalidCredentials = session.ErrInvalidCredentials
	ErrUserDisabled       = session.ErrUserDisabled
	ErrUserNotFound       = session.ErrUserNotFound
)

// Claims is the token payload.
type Claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

// NewAccessToken signs a token for an identity.
func NewAccessToken(secret, issuer string, ttl time.Duration, id store.Identity) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email:       id.Email,
		DisplayName: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies a token and returns the identity it names.
func ParseToken(secret, tokenString string) (store.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return store.Identity{}, err
	}
	claims, okClaims := token.Claims.(*Claims)
	if !okClaims || !token.Valid {
		return store.Identity{}, jwt.ErrTokenInvalidClaims
	}
	return store.Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}

// DecodeIdentity reads the identity out of a token without verifying the
// signature. Resuming a saved session client-side needs the claims; the
// daemon still verifies the signature on every request.
func DecodeIdentity(tokenString string) (store.Identity, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return store.Identity{}, err
	}
	return store.Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}

// HashPassword produces a bcrypt hash for storage in the credentials
// collection.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// Authenticate checks email and password against the credentials collection
// and returns the identity. Credentials live in a server-only collection the
// rules never expose, keyed by the user's id, with the profile supplying the
// display name.
func Authenticate(eng *engine.Engine, email, password string) (store.Identity, error) {
	snap, err := eng.GetAll(
		store.NewQuery(store.CollectionCredentials).Where("email", store.OpEqual, email),
	)
	if err != nil {
		return store.Identity{}, err
	}
	if len(snap) == 0 {
		return store.Identity{}, ErrUserNotFound
	}
	cred := snap[0]
	if cred.Bool("disabled") {
		return store.Identity{}, ErrUserDisabled
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.String("passwordHash")), []byte(password)) != nil {
		return store.Identity{}, ErrInvalidCredentials
	}

	id := store.Identity{ID: cred.ID, Email: email, DisplayName: email}
	profiles, err := eng.GetAll(store.NewQuery(store.CollectionUsers))
	if err == nil {
		for _, p := range profiles {
			if p.ID == cred.ID {
				first, last := p.String("firstName"), p.String("lastName")
				if first != "" || last != "" {
					name := first
					if last != "" {
						if name != "" {
							name += " "
						}
						name += last
					}
					id.DisplayName = name
				}
				break
			}
		}
	}
	return id, nil
}
