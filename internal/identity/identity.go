// Package identity authenticates users and provisions their user record
// on first sign-in.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/matheus3301/parley/internal/docstore"
	"github.com/matheus3301/parley/internal/model"
	"go.uber.org/zap"
)

// Identity is the result of a successful sign-in.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
	AvatarURL   string
}

// AuthError is a sign-in failure. Surfaced to the user; no retry loop.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sign-in failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("sign-in failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Provider authenticates a bearer token into a stable identity.
type Provider interface {
	SignIn(ctx context.Context, token string) (*Identity, error)
}

// TokenProvider validates HS256-signed identity tokens carrying the
// standard sub/name/email/picture claims.
type TokenProvider struct {
	secret []byte
	logger *zap.Logger
}

// NewTokenProvider creates a provider verifying with the given shared secret.
func NewTokenProvider(secret string, logger *zap.Logger) *TokenProvider {
	return &TokenProvider{secret: []byte(secret), logger: logger}
}

// SignIn verifies the token and extracts the identity claims.
func (p *TokenProvider) SignIn(_ context.Context, token string) (*Identity, error) {
	parsed, err := gojwt.Parse(token,
		func(*gojwt.Token) (any, error) { return p.secret, nil },
		gojwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		p.logger.Warn("token rejected", zap.Error(err))
		return nil, &AuthError{Reason: "invalid token", Err: err}
	}

	claims, ok := parsed.Claims.(gojwt.MapClaims)
	if !ok {
		return nil, &AuthError{Reason: "unexpected claims"}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, &AuthError{Reason: "token missing subject"}
	}

	ident := &Identity{UserID: sub}
	if name, ok := claims["name"].(string); ok {
		ident.DisplayName = name
	}
	if ident.DisplayName == "" {
		ident.DisplayName = sub
	}
	if email, ok := claims["email"].(string); ok {
		ident.Email = email
	}
	if picture, ok := claims["picture"].(string); ok {
		ident.AvatarURL = picture
	}
	return ident, nil
}

// EnsureUser creates the users/{id} record on first sign-in, with the
// lowercased display name as search key and an empty conversation list.
// Subsequent sign-ins return the existing record untouched.
func EnsureUser(ctx context.Context, st docstore.Store, ident *Identity) (*model.User, error) {
	existing, err := st.GetUser(ctx, ident.UserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	u := model.User{
		ID:          ident.UserID,
		DisplayName: ident.DisplayName,
		SearchKey:   strings.ToLower(ident.DisplayName),
		Email:       ident.Email,
		AvatarURL:   ident.AvatarURL,
	}
	if err := st.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user record: %w", err)
	}
	return &u, nil
}
