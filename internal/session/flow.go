package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"

	"golang.org/x/oauth2"
)

const callbackPath = "/callback"

// SignIn hands off to the provider's hosted login page and waits for the
// redirect back. A local HTTP server receives the authorization code, which
// is exchanged for tokens and cached. Local state is only updated once the
// exchange succeeds and CheckAuthState re-runs against the cache.
func (c *Controller) SignIn(ctx context.Context) error {
	if c.demo {
		// CheckAuthState synthesizes the demo identity.
		c.CheckAuthState(ctx)
		return nil
	}

	tok, err := c.tokenFromWeb(ctx)
	if err != nil {
		return fmt.Errorf("sign-in flow failed: %w", err)
	}

	cached := &cachedToken{Token: tok}
	if id, ok := tok.Extra("id_token").(string); ok {
		cached.IDToken = id
	}
	if err := SaveToken(c.tokenPath, cached); err != nil {
		return fmt.Errorf("unable to save token: %w", err)
	}

	if _, ok := c.CheckAuthState(ctx); !ok {
		return fmt.Errorf("sign-in completed but session could not be established")
	}
	return nil
}

// tokenFromWeb initiates the browser-based login flow
func (c *Controller) tokenFromWeb(ctx context.Context) (*oauth2.Token, error) {
	// Channel to receive authorization code
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	// Create HTTP server to receive callback
	mux := http.NewServeMux()
	addr := redirectAddr(c.oauth.RedirectURL)
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Handle provider callback
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			errCh <- fmt.Errorf("no authorization code received")
			fmt.Fprintf(w, "Error: No authorization code received")
			return
		}

		codeCh <- code
		fmt.Fprintf(w, "Sign-in successful! You can close this window and return to the terminal.")
	})

	// Start server in background
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("failed to start local server: %w", err)
		}
	}()

	// Generate authorization URL
	authURL := c.oauth.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	// Open browser
	slog.Info("opening browser for sign-in")
	slog.Info("if the browser doesn't open automatically, visit this URL", "url", authURL)

	if err := openBrowser(authURL); err != nil {
		slog.Warn("failed to open browser automatically", "error", err)
	}

	// Wait for authorization code or error
	var code string
	select {
	case code = <-codeCh:
		// Got authorization code
	case err := <-errCh:
		server.Shutdown(ctx)
		return nil, err
	case <-ctx.Done():
		server.Shutdown(ctx)
		return nil, ctx.Err()
	}

	// Shutdown server
	server.Shutdown(ctx)

	// Exchange authorization code for tokens
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
	}

	return tok, nil
}

// redirectAddr extracts the listen address from the configured redirect URL.
func redirectAddr(redirectURL string) string {
	u, err := url.Parse(redirectURL)
	if err != nil || u.Port() == "" {
		return ":8080"
	}
	return ":" + u.Port()
}

// openBrowser opens the specified URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}

	return cmd.Start()
}
