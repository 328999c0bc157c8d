package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"conciera/internal/db"
	"conciera/internal/domain"
	"conciera/internal/migrate"
	"conciera/internal/repo"
	"conciera/internal/session"
)

const secret = "test-secret"

func signToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestParseToken(t *testing.T) {
	p, err := session.ParseToken(signToken(t, "auth-1"), secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.AuthID != "auth-1" || p.Source != "jwt" {
		t.Fatalf("principal = %+v", p)
	}
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	if _, err := session.ParseToken(signToken(t, "auth-1"), "other-secret"); err == nil {
		t.Fatal("wrong secret accepted")
	}
	if _, err := session.ParseToken(signToken(t, ""), secret); err == nil {
		t.Fatal("empty subject accepted")
	}
	if _, err := session.ParseToken("garbage", secret); err == nil {
		t.Fatal("garbage token accepted")
	}
	if _, err := session.ParseToken(signToken(t, "auth-1"), ""); err == nil {
		t.Fatal("empty secret accepted")
	}
}

func TestCurrentUser(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	r := repo.Repo{DB: conn}
	if err := r.InsertUser(ctx, domain.User{
		ID: "user-1", AuthID: "auth-1", FirstName: "Marie", Role: "agent", Active: true,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	resolver := session.Resolver{Repo: r}

	u, err := resolver.CurrentUser(ctx, session.Principal{AuthID: "auth-1", Source: "jwt"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.ID != "user-1" {
		t.Fatalf("user = %+v", u)
	}

	if _, err := resolver.CurrentUser(ctx, session.Principal{}); err != session.ErrNotAuthenticated {
		t.Fatalf("zero principal: %v", err)
	}
	if _, err := resolver.CurrentUser(ctx, session.Principal{AuthID: "auth-unknown"}); err != session.ErrNotAuthenticated {
		t.Fatalf("unknown identity: %v", err)
	}
}
