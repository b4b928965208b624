package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleIssuer = "https://accounts.google.com"

// ErrEmailNotVerified is returned when Google has not verified the account email.
var ErrEmailNotVerified = errors.New("google email is not verified")

// GoogleClaims contains the relevant claims from a Google ID token.
type GoogleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleConfig holds the OAuth client registration for Google sign-in.
type GoogleConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	AllowedDomains []string
	AllowedEmails  []string
}

// GoogleAuthenticator exchanges Google authorization codes for verified identities.
type GoogleAuthenticator struct {
	oauth          *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	allowedDomains map[string]struct{}
	allowedEmails  map[string]struct{}
}

// NewGoogleAuthenticator discovers Google's OIDC configuration and builds an authenticator.
func NewGoogleAuthenticator(ctx context.Context, cfg GoogleConfig) (*GoogleAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	return &GoogleAuthenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier:       provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		allowedDomains: lowerSet(cfg.AllowedDomains),
		allowedEmails:  lowerSet(cfg.AllowedEmails),
	}, nil
}

// AuthURL generates the Google consent URL carrying the given state.
func (g *GoogleAuthenticator) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades the authorization code for a verified ID token and returns its claims.
func (g *GoogleAuthenticator) Exchange(ctx context.Context, code string) (*GoogleClaims, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in response")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims GoogleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	if !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &claims, nil
}

// IsEmailAllowed checks the email against the configured allowlists. With no
// allowlists configured every verified account is accepted.
func (g *GoogleAuthenticator) IsEmailAllowed(email string) bool {
	return emailAllowed(email, g.allowedDomains, g.allowedEmails)
}

func emailAllowed(email string, domains, emails map[string]struct{}) bool {
	if len(domains) == 0 && len(emails) == 0 {
		return true
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := emails[email]; ok {
		return true
	}

	_, domain, found := strings.Cut(email, "@")
	if !found {
		return false
	}
	_, ok := domains[domain]
	return ok
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// GenerateState generates a cryptographically secure random state string.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
