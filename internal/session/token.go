package session

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

const tokenFilePermMode = 0600

// cachedToken pairs the OAuth2 token with the raw ID token the provider
// issued alongside it. The ID token is what the backend gateway authorizer
// expects as the bearer credential.
type cachedToken struct {
	*oauth2.Token
	IDToken string `json:"id_token,omitempty"`
}

// LoadToken loads a cached session token from the specified file path
func LoadToken(tokenPath string) (*cachedToken, error) {
	f, err := os.Open(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open token file: %w", err)
	}
	defer f.Close()

	tok := &cachedToken{}
	err = json.NewDecoder(f).Decode(tok)
	if err != nil {
		return nil, fmt.Errorf("unable to decode token: %w", err)
	}

	return tok, nil
}

// SaveToken saves a session token to the specified file path with restricted permissions
func SaveToken(tokenPath string, token *cachedToken) error {
	f, err := os.OpenFile(tokenPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, tokenFilePermMode)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()

	err = json.NewEncoder(f).Encode(token)
	if err != nil {
		return fmt.Errorf("unable to encode token: %w", err)
	}

	return nil
}
