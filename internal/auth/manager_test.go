package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

type stubReauth struct {
	email    string
	password string
	err      error
}

func (s *stubReauth) Reauthenticate(_ context.Context, email, password string) error {
	s.email = email
	s.password = password
	return s.err
}

func TestParseToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		wantID  string
		wantErr bool
	}{
		{name: "user_id claim", claims: jwt.MapClaims{"user_id": "u1", "sub": "other", "exp": exp.Unix()}, wantID: "u1"},
		{name: "sub fallback", claims: jwt.MapClaims{"sub": "u2", "email": "u2@example.com"}, wantID: "u2"},
		{name: "missing subject", claims: jwt.MapClaims{"email": "x@example.com"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := ParseToken(signToken(t, tt.claims))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("expected invalid token got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if session.UserID != tt.wantID {
				t.Fatalf("expected user %q got %q", tt.wantID, session.UserID)
			}
		})
	}

	if _, err := ParseToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for garbage got %v", err)
	}
}

func TestManagerSignInAndOut(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(store, nil, nil)

	var events []Event
	unsubscribe := manager.Subscribe(func(e Event, _ Session) { events = append(events, e) })
	defer unsubscribe()

	if _, err := manager.UserID(); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated got %v", err)
	}

	token := signToken(t, jwt.MapClaims{"sub": "u1", "email": "u1@example.com", "exp": time.Now().Add(time.Hour).Unix()})
	session, err := manager.SignIn(context.Background(), token)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if session.Email != "u1@example.com" {
		t.Fatalf("unexpected email %q", session.Email)
	}
	if !store.Has() {
		t.Fatal("expected session persisted")
	}

	got, err := manager.Token(context.Background())
	if err != nil || got != token {
		t.Fatalf("expected token returned got %q err %v", got, err)
	}

	if err := manager.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, ok := manager.Current(); ok {
		t.Fatal("expected no current session")
	}
	if store.Has() {
		t.Fatal("expected persisted session removed")
	}

	if len(events) != 2 || events[0] != SignedIn || events[1] != SignedOut {
		t.Fatalf("unexpected events %v", events)
	}
}

func TestManagerRejectsExpiredToken(t *testing.T) {
	manager := NewManager(NewInMemorySessionStore(), nil, nil)
	token := signToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()})
	if _, err := manager.SignIn(context.Background(), token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected expired got %v", err)
	}
}

func TestManagerRestore(t *testing.T) {
	store := NewInMemorySessionStore()
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	_ = store.Save(context.Background(), Session{UserID: "u1", Token: "t", ExpiresAt: now.Add(time.Hour)})

	manager := NewManager(store, nil, nil)
	manager.WithNowFunc(func() time.Time { return now })

	var restored bool
	manager.Subscribe(func(e Event, _ Session) { restored = e == Restored })

	if err := manager.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored {
		t.Fatal("expected restored event")
	}
	if id, err := manager.UserID(); err != nil || id != "u1" {
		t.Fatalf("expected u1 got %q err %v", id, err)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := manager.Current(); ok {
		t.Fatal("expected expired session to read as signed out")
	}
}

func TestManagerRestoreDropsExpired(t *testing.T) {
	store := NewInMemorySessionStore()
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	_ = store.Save(context.Background(), Session{UserID: "u1", ExpiresAt: now.Add(-time.Minute)})

	manager := NewManager(store, nil, nil)
	manager.WithNowFunc(func() time.Time { return now })
	if err := manager.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if store.Has() {
		t.Fatal("expected expired session deleted")
	}
}

func TestManagerReauthenticate(t *testing.T) {
	reauth := &stubReauth{}
	manager := NewManager(NewInMemorySessionStore(), reauth, nil)

	if err := manager.Reauthenticate(context.Background(), "pw"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated got %v", err)
	}

	token := signToken(t, jwt.MapClaims{"sub": "u1", "email": "u1@example.com"})
	if _, err := manager.SignIn(context.Background(), token); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := manager.Reauthenticate(context.Background(), "pw"); err != nil {
		t.Fatalf("reauthenticate: %v", err)
	}
	if reauth.email != "u1@example.com" || reauth.password != "pw" {
		t.Fatalf("unexpected reauth call %+v", reauth)
	}
}

func TestNewManagerRequiresStore(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil store")
		}
	}()
	NewManager(nil, nil, nil)
}
