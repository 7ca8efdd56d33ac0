package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"tokokas/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func adminOnlyStub() *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := adminOnlyStub()
	manager := NewAuthManager("test-secret", time.Hour, store)

	_, err := manager.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, adminOnlyStub())

	resp, err := manager.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, adminOnlyStub())

	if _, err := manager.ParseToken("not.a.token"); err == nil {
		t.Fatalf("expected error for garbage token")
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewAuthManager("secret-one", time.Hour, adminOnlyStub())
	verifier := NewAuthManager("secret-two", time.Hour, adminOnlyStub())

	resp, err := issuer.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := adminOnlyStub()
	store.users["dewi"] = domain.UserAccount{
		Username:  "dewi",
		Password:  "secret99",
		Role:      "cashier",
		Active:    false,
		CreatedAt: time.Now().UTC(),
	}
	manager := NewAuthManager("test-secret", time.Hour, store)

	if _, err := manager.Login(domain.LoginRequest{Username: "dewi", Password: "secret99"}); err == nil {
		t.Fatalf("expected inactive account login to fail")
	}
}

func TestCreateCashierStoresPasswordHash(t *testing.T) {
	store := adminOnlyStub()
	manager := NewAuthManager("test-secret", time.Hour, store)

	cashier, err := manager.CreateCashier(domain.CashierCreateRequest{
		Username: "Rina ",
		Password: "rahasia",
	})
	if err != nil {
		t.Fatalf("create cashier: %v", err)
	}
	if cashier.Username != "rina" {
		t.Fatalf("expected lowercased trimmed username, got %q", cashier.Username)
	}

	stored := store.users["rina"]
	if stored.Password == "rahasia" || !strings.HasPrefix(stored.Password, "$2") {
		t.Fatalf("expected bcrypt hash in store, got %q", stored.Password)
	}
	if stored.Role != "cashier" || !stored.Active {
		t.Fatalf("unexpected stored account %+v", stored)
	}
}

func TestCreateCashierValidation(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, adminOnlyStub())

	cases := []domain.CashierCreateRequest{
		{Username: "ab", Password: "longenough"},
		{Username: "valid-name", Password: "short"},
		{Username: "has space", Password: "longenough"},
	}
	for _, req := range cases {
		if _, err := manager.CreateCashier(req); err == nil {
			t.Fatalf("expected validation error for %+v", req)
		}
	}

	if _, err := manager.CreateCashier(domain.CashierCreateRequest{Username: "admin", Password: "whatever99"}); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
}

func TestListCashiersExcludesAdmins(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, adminOnlyStub())

	if _, err := manager.CreateCashier(domain.CashierCreateRequest{Username: "rina", Password: "rahasia"}); err != nil {
		t.Fatalf("create cashier: %v", err)
	}

	cashiers := manager.ListCashiers()
	if len(cashiers) != 1 {
		t.Fatalf("expected 1 cashier, got %d", len(cashiers))
	}
	if cashiers[0].Username != "rina" {
		t.Fatalf("unexpected cashier %+v", cashiers[0])
	}
}
