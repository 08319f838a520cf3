package auth

import (
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/internal/engine"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// CreateAccount seeds a sign-in account: a credentials document plus a user
// profile under the same id. The profile gets a createdAt stamp so seeded
// accounts sort alongside registered ones.
func CreateAccount(eng *engine.Engine, email, password, firstName, lastName, role string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	id, err := eng.Create(store.CollectionCredentials, map[string]any{
		"email":        email,
		"passwordHash": hash,
		"disabled":     false,
	})
	if err != nil {
		return "", err
	}
	if err := eng.Put(store.CollectionUsers, id, map[string]any{
		"firstName": firstName,
		"lastName":  lastName,
		"email":     email,
		"role":      role,
		"createdAt": time.Now().UTC(),
	}); err != nil {
		return "", err
	}
	return id, nil
}
