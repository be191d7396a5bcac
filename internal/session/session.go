// Package session owns authentication state: whether a user is signed in,
// who they are, and the sign-in/sign-out actions against the hosted identity
// provider. It is deliberately thin; its main effect is gating the project
// and event controllers' lifecycle.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"teamcal/internal/format"
)

// Controller tracks the current session. Safe for use from multiple
// goroutines.
type Controller struct {
	oauth     *oauth2.Config
	demo      bool
	tokenPath string
	logoutURL string

	mu            sync.Mutex
	authenticated bool
	user          *format.User
}

// Config configures a session controller for a hosted identity provider
// domain (authorize/token/logout endpoints under one domain).
type Config struct {
	Demo         bool
	AuthDomain   string
	ClientID     string
	RedirectPort string
	TokenPath    string
}

// NewController creates a session controller.
func NewController(cfg Config) *Controller {
	port := cfg.RedirectPort
	if port == "" {
		port = "8080"
	}
	return &Controller{
		demo:      cfg.Demo,
		tokenPath: cfg.TokenPath,
		logoutURL: "https://" + cfg.AuthDomain + "/logout",
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: fmt.Sprintf("http://localhost:%s%s", port, callbackPath),
			Scopes:      []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://" + cfg.AuthDomain + "/oauth2/authorize",
				TokenURL: "https://" + cfg.AuthDomain + "/oauth2/token",
			},
		},
	}
}

// CheckAuthState resolves the current session. Demo mode synthesizes an
// authenticated user immediately. Otherwise the cached token is loaded and
// the identity decoded from its ID token; any failure is treated as
// unauthenticated - no distinction is made between "not signed in" and
// "provider unreachable".
func (c *Controller) CheckAuthState(ctx context.Context) (*format.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.demo {
		c.authenticated = true
		c.user = &format.User{Username: "demo-user", Email: "demo@example.com"}
		return c.user, true
	}

	tok, err := LoadToken(c.tokenPath)
	if err != nil {
		c.authenticated = false
		c.user = nil
		return nil, false
	}

	user, err := identityFromIDToken(tok.IDToken)
	if err != nil {
		slog.Warn("cached token present but identity could not be decoded", "error", err)
		c.authenticated = false
		c.user = nil
		return nil, false
	}

	c.authenticated = true
	c.user = user
	return user, true
}

// IsAuthenticated reports whether a session is established.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// User returns the current user, or nil when unauthenticated.
func (c *Controller) User() *format.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// SignOut invalidates the session on the identity provider (best effort) and
// clears the local identity and token cache.
func (c *Controller) SignOut(ctx context.Context) error {
	if !c.demo {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.logoutURL+"?"+url.Values{"client_id": {c.oauth.ClientID}}.Encode(), nil)
		if err == nil {
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				slog.Warn("provider sign-out request failed", "error", err)
			} else {
				resp.Body.Close()
			}
		}

		if err := os.Remove(c.tokenPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("unable to remove cached token: %w", err)
		}
	}

	c.mu.Lock()
	c.authenticated = false
	c.user = nil
	c.mu.Unlock()
	return nil
}

// TokenSource returns the credential source the API client attaches to every
// request. The ID token is the bearer credential the gateway authorizer
// validates.
func (c *Controller) TokenSource(ctx context.Context) oauth2.TokenSource {
	if c.demo {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "demo-token"})
	}
	return oauth2.ReuseTokenSource(nil, &idTokenSource{ctrl: c, ctx: ctx})
}

// idTokenSource resolves the cached ID token, refreshing through the
// provider when the access token has expired.
type idTokenSource struct {
	ctrl *Controller
	ctx  context.Context
}

func (s *idTokenSource) Token() (*oauth2.Token, error) {
	cached, err := LoadToken(s.ctrl.tokenPath)
	if err != nil {
		return nil, fmt.Errorf("no cached session token: %w", err)
	}

	if cached.Token.Valid() {
		return bearerFromID(cached), nil
	}

	refreshed, err := s.ctrl.oauth.TokenSource(s.ctx, cached.Token).Token()
	if err != nil {
		return nil, fmt.Errorf("unable to refresh session token: %w", err)
	}

	renewed := &cachedToken{Token: refreshed, IDToken: cached.IDToken}
	if id, ok := refreshed.Extra("id_token").(string); ok && id != "" {
		renewed.IDToken = id
	}
	if err := SaveToken(s.ctrl.tokenPath, renewed); err != nil {
		slog.Warn("unable to persist refreshed token", "error", err)
	}
	return bearerFromID(renewed), nil
}

// bearerFromID rewrites the token so the ID token rides in the bearer slot.
func bearerFromID(tok *cachedToken) *oauth2.Token {
	out := *tok.Token
	if tok.IDToken != "" {
		out.AccessToken = tok.IDToken
	}
	return &out
}

// identityFromIDToken decodes the user identity from the ID token claims.
// The signature is not verified here; the backend gateway authorizer is the
// verifying party, the client only needs the display identity.
func identityFromIDToken(idToken string) (*format.User, error) {
	if idToken == "" {
		return nil, fmt.Errorf("no ID token in cached session")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("unable to decode ID token: %w", err)
	}

	username, _ := claims["cognito:username"].(string)
	if username == "" {
		username, _ = claims["sub"].(string)
	}
	if username == "" {
		return nil, fmt.Errorf("ID token carries no usable identity claim")
	}
	email, _ := claims["email"].(string)

	return &format.User{Username: username, Email: email}, nil
}
