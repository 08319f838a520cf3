package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/internal/engine"
	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

const testSecret = "test-secret"

func seedAccount(t *testing.T, e *engine.Engine, id, email, password string, disabled bool) {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := e.Put(store.CollectionCredentials, id, map[string]any{
		"email":        email,
		"passwordHash": hash,
		"disabled":     disabled,
	}); err != nil {
		t.Fatalf("Seed credentials: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	e := engine.New(nil, nil)
	defer e.Close()
	seedAccount(t, e, "u1", "ada@example.com", "s3cret", false)
	seedAccount(t, e, "u2", "ben@example.com", "pw", true)
	if err := e.Put(store.CollectionUsers, "u1", map[string]any{
		"firstName": "Ada", "lastName": "Cruz", "role": "admin",
	}); err != nil {
		t.Fatalf("Seed profile: %v", err)
	}

	id, err := Authenticate(e, "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.ID != "u1" || id.Email != "ada@example.com" {
		t.Errorf("Identity wrong: %+v", id)
	}
	if id.DisplayName != "Ada Cruz" {
		t.Errorf("Display name should come from the profile, got %q", id.DisplayName)
	}

	if _, err := Authenticate(e, "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Wrong password: got %v", err)
	}
	if _, err := Authenticate(e, "nobody@example.com", "pw"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Unknown email: got %v", err)
	}
	if _, err := Authenticate(e, "ben@example.com", "pw"); !errors.Is(err, ErrUserDisabled) {
		t.Errorf("Disabled account: got %v", err)
	}
}

func TestCreateAccountStampsProfile(t *testing.T) {
	e := engine.New(nil, nil)
	defer e.Close()

	id, err := CreateAccount(e, "ada@example.com", "s3cret", "Ada", "Cruz", "officer")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	got, err := Authenticate(e, "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate after seed: %v", err)
	}
	if got.ID != id || got.DisplayName != "Ada Cruz" {
		t.Errorf("Identity wrong: %+v", got)
	}

	snap, err := e.GetAll(store.NewQuery(store.CollectionUsers).OrderBy("createdAt", true))
	if err != nil {
		t.Fatalf("GetAll users: %v", err)
	}
	if len(snap) != 1 || snap[0].ID != id {
		t.Fatalf("Expected one profile for %s, got %+v", id, snap)
	}
	if snap[0].String("role") != "officer" {
		t.Errorf("Role not persisted: %q", snap[0].String("role"))
	}
	// Seeded profiles sort with registered ones, so createdAt must be set.
	if _, ok := snap[0].Time("createdAt"); !ok {
		t.Error("Expected createdAt on the seeded profile")
	}
}

func TestAuthenticate_NoProfileFallsBackToEmail(t *testing.T) {
	e := engine.New(nil, nil)
	defer e.Close()
	seedAccount(t, e, "u1", "ada@example.com", "s3cret", false)

	id, err := Authenticate(e, "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.DisplayName != "ada@example.com" {
		t.Errorf("Missing profile should fall back to email, got %q", id.DisplayName)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	want := store.Identity{ID: "u1", Email: "ada@example.com", DisplayName: "Ada Cruz"}
	token, err := NewAccessToken(testSecret, "triji", time.Hour, want)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	got, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got != want {
		t.Errorf("Round trip: got %+v, want %+v", got, want)
	}

	if _, err := ParseToken("other-secret", token); err == nil {
		t.Error("Wrong secret must not verify")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, err := NewAccessToken(testSecret, "triji", -time.Minute, store.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if _, err := ParseToken(testSecret, token); err == nil {
		t.Error("Expired token must not verify")
	}
}

func TestDecodeIdentity(t *testing.T) {
	want := store.Identity{ID: "u1", Email: "ada@example.com", DisplayName: "Ada Cruz"}
	token, err := NewAccessToken(testSecret, "triji", time.Hour, want)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	// Decoding skips signature verification, so no secret is needed.
	got, err := DecodeIdentity(token)
	if err != nil {
		t.Fatalf("DecodeIdentity: %v", err)
	}
	if got != want {
		t.Errorf("Decode: got %+v, want %+v", got, want)
	}

	if _, err := DecodeIdentity("not-a-token"); err == nil {
		t.Error("Garbage input should fail to decode")
	}
}

func TestProvider_SignInResumeSignOut(t *testing.T) {
	e := engine.New(nil, nil)
	defer e.Close()
	seedAccount(t, e, "u1", "ada@example.com", "s3cret", false)

	p := &Provider{Engine: e, Secret: testSecret, Issuer: "triji", TokenTTL: time.Hour}

	var seen []*store.Identity
	detach := p.OnAuthStateChange(func(id *store.Identity) { seen = append(seen, id) })
	if len(seen) != 1 || seen[0] != nil {
		t.Fatalf("Listener should fire immediately with nil, got %v", seen)
	}

	id, token, err := p.SignIn(context.Background(), "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if token == "" {
		t.Fatal("SignIn should issue a token")
	}
	if len(seen) != 2 || seen[1] == nil || seen[1].ID != id.ID {
		t.Fatalf("Listener should see the signed-in identity, got %v", seen)
	}

	if err := p.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if len(seen) != 3 || seen[2] != nil {
		t.Fatalf("Listener should see the sign-out, got %v", seen)
	}

	if err := p.Resume(token); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(seen) != 4 || seen[3] == nil || seen[3].Email != "ada@example.com" {
		t.Fatalf("Listener should see the resumed identity, got %v", seen)
	}

	detach()
	p.SignOut(context.Background())
	if len(seen) != 4 {
		t.Error("Detached listener must not fire")
	}

	if err := p.Resume("garbage"); err == nil {
		t.Error("Resume with a bad token must fail")
	}
}
