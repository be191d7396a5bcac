package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

func signedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("unable to sign test token: %v", err)
	}
	return signed
}

func TestSaveLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	in := &cachedToken{
		Token: &oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour).Round(time.Second),
		},
		IDToken: "id-token",
	}
	if err := SaveToken(path, in); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file permissions = %o, want 0600", perm)
	}

	out, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if out.AccessToken != in.AccessToken || out.RefreshToken != in.RefreshToken {
		t.Errorf("loaded token does not match saved token: %+v", out.Token)
	}
	if out.IDToken != in.IDToken {
		t.Errorf("IDToken = %q, want %q", out.IDToken, in.IDToken)
	}
}

func TestLoadToken_Missing(t *testing.T) {
	if _, err := LoadToken(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing token file")
	}
}

func TestIdentityFromIDToken(t *testing.T) {
	tests := []struct {
		name         string
		claims       jwt.MapClaims
		wantUsername string
		wantEmail    string
		wantErr      bool
	}{
		{
			name:         "provider username preferred",
			claims:       jwt.MapClaims{"cognito:username": "alice", "sub": "uuid-1", "email": "alice@example.com"},
			wantUsername: "alice",
			wantEmail:    "alice@example.com",
		},
		{
			name:         "subject fallback",
			claims:       jwt.MapClaims{"sub": "uuid-2", "email": "bob@example.com"},
			wantUsername: "uuid-2",
			wantEmail:    "bob@example.com",
		},
		{
			name:         "email optional",
			claims:       jwt.MapClaims{"sub": "uuid-3"},
			wantUsername: "uuid-3",
		},
		{
			name:    "no identity claim",
			claims:  jwt.MapClaims{"email": "nobody@example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := identityFromIDToken(signedIDToken(t, tt.claims))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("identityFromIDToken() error = %v", err)
			}
			if user.Username != tt.wantUsername {
				t.Errorf("Username = %q, want %q", user.Username, tt.wantUsername)
			}
			if user.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", user.Email, tt.wantEmail)
			}
		})
	}
}

func TestIdentityFromIDToken_Invalid(t *testing.T) {
	if _, err := identityFromIDToken(""); err == nil {
		t.Error("expected error for empty token")
	}
	if _, err := identityFromIDToken("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestCheckAuthState_Demo(t *testing.T) {
	c := NewController(Config{Demo: true})

	user, ok := c.CheckAuthState(context.Background())
	if !ok {
		t.Fatal("demo mode must authenticate immediately")
	}
	if user.Username != "demo-user" || user.Email != "demo@example.com" {
		t.Errorf("unexpected demo identity: %+v", user)
	}
	if !c.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after demo check")
	}
}

func TestSignIn_Demo(t *testing.T) {
	c := NewController(Config{Demo: true})

	if err := c.SignIn(context.Background()); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if !c.IsAuthenticated() {
		t.Error("demo sign-in must establish a session")
	}
	user := c.User()
	if user == nil {
		t.Fatal("demo sign-in must populate the user identity")
	}
	if user.Username != "demo-user" {
		t.Errorf("Username = %q, want demo-user", user.Username)
	}
}

func TestCheckAuthState_NoCachedToken(t *testing.T) {
	c := NewController(Config{
		AuthDomain: "auth.invalid",
		ClientID:   "client",
		TokenPath:  filepath.Join(t.TempDir(), "token.json"),
	})

	user, ok := c.CheckAuthState(context.Background())
	if ok || user != nil {
		t.Errorf("expected unauthenticated with no cached token, got ok=%v user=%+v", ok, user)
	}
	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true without a session")
	}
}

func TestCheckAuthState_CachedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	idToken := signedIDToken(t, jwt.MapClaims{"cognito:username": "alice", "email": "alice@example.com"})
	err := SaveToken(path, &cachedToken{
		Token:   &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)},
		IDToken: idToken,
	})
	if err != nil {
		t.Fatal(err)
	}

	c := NewController(Config{AuthDomain: "auth.invalid", ClientID: "client", TokenPath: path})

	user, ok := c.CheckAuthState(context.Background())
	if !ok {
		t.Fatal("expected authenticated session from cached token")
	}
	if user.Username != "alice" || user.Email != "alice@example.com" {
		t.Errorf("unexpected identity: %+v", user)
	}
}

func TestCheckAuthState_UndecodableIdentityFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	err := SaveToken(path, &cachedToken{
		Token:   &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)},
		IDToken: "garbage",
	})
	if err != nil {
		t.Fatal(err)
	}

	c := NewController(Config{AuthDomain: "auth.invalid", ClientID: "client", TokenPath: path})

	if _, ok := c.CheckAuthState(context.Background()); ok {
		t.Error("undecodable identity must be treated as unauthenticated")
	}
}

func TestTokenSource_Demo(t *testing.T) {
	c := NewController(Config{Demo: true})

	tok, err := c.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "demo-token" {
		t.Errorf("AccessToken = %q, want demo-token", tok.AccessToken)
	}
}

func TestTokenSource_IDTokenRidesInBearerSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	idToken := signedIDToken(t, jwt.MapClaims{"sub": "alice"})
	err := SaveToken(path, &cachedToken{
		Token:   &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)},
		IDToken: idToken,
	})
	if err != nil {
		t.Fatal(err)
	}

	c := NewController(Config{AuthDomain: "auth.invalid", ClientID: "client", TokenPath: path})

	tok, err := c.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != idToken {
		t.Error("bearer credential must be the ID token, not the access token")
	}
}

func TestSignOut_ClearsSessionAndCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	idToken := signedIDToken(t, jwt.MapClaims{"sub": "alice"})
	err := SaveToken(path, &cachedToken{
		Token:   &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)},
		IDToken: idToken,
	})
	if err != nil {
		t.Fatal(err)
	}

	c := NewController(Config{AuthDomain: "auth.invalid", ClientID: "client", TokenPath: path})
	if _, ok := c.CheckAuthState(context.Background()); !ok {
		t.Fatal("seed session failed")
	}

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if c.IsAuthenticated() || c.User() != nil {
		t.Error("session state must be cleared after sign-out")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cached token file must be removed after sign-out")
	}
}
