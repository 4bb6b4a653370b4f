package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// refreshTimeout bounds a token refresh issued from TokenSource.Token,
// which carries no context of its own.
const refreshTimeout = 15 * time.Second

// TokenStore persists the session tokens between invocations.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(token *oauth2.Token) error
	Clear() error
}

// FileTokenStore keeps the token as JSON in a 0600 file.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore creates a store backed by path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Load reads the stored token. A missing file yields ErrNotAuthenticated.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.path) // #nosec G304
	if errors.Is(err, os.ErrNotExist) {
		return nil, common.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return token, nil
}

// Save writes token to disk, creating the directory if needed.
func (s *FileTokenStore) Save(token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

// Clear removes the stored token.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

// SessionTokenSource serves the stored access token and refreshes it once
// its JWT expiry has passed.
type SessionTokenSource struct {
	store     TokenStore
	refresher Refresher
	mu        sync.Mutex
}

// NewSessionTokenSource creates a token source over store. refresher may be
// nil, in which case expired tokens are reported as ErrTokenExpired.
func NewSessionTokenSource(store TokenStore, refresher Refresher) *SessionTokenSource {
	return &SessionTokenSource{store: store, refresher: refresher}
}

// Token implements oauth2.TokenSource.
func (s *SessionTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if token.Valid() {
		return token, nil
	}
	if token.RefreshToken == "" || s.refresher == nil {
		return nil, common.ErrTokenExpired
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	access, err := s.refresher.RefreshAccessToken(ctx, token.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTokenExpired, err)
	}

	refreshed := NewToken(model.Tokens{Access: access, Refresh: token.RefreshToken})
	if err := s.store.Save(refreshed); err != nil {
		slog.Warn("Failed to save refreshed token", "error", err)
	}
	return refreshed, nil
}

// NewToken converts an API token pair into an oauth2 token whose expiry is
// read from the access token's exp claim.
func NewToken(tokens model.Tokens) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		TokenType:    "Bearer",
	}
	if exp, ok := TokenExpiry(tokens.Access); ok {
		token.Expiry = exp
	}
	return token
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature;
// the server remains the one that validates it.
func TokenExpiry(access string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

type loginRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type loginResponse struct {
	User   model.User   `json:"user"`
	Tokens model.Tokens `json:"tokens"`
}

// Login authenticates with phone number and password and returns the user
// snapshot together with the issued token.
func (c *Client) Login(ctx context.Context, phoneNumber, password string) (*model.User, *oauth2.Token, error) {
	var resp loginResponse
	_, err := c.Do(ctx, http.MethodPost, PathLogin, &resp,
		WithJSON(loginRequest{PhoneNumber: phoneNumber, Password: password}),
		withoutAuth())
	if err != nil {
		return nil, nil, err
	}
	if resp.Tokens.Access == "" {
		return nil, nil, fmt.Errorf("login response carried no access token")
	}
	return &resp.User, NewToken(resp.Tokens), nil
}

// Logout blacklists the refresh token server-side.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	_, err := c.Do(ctx, http.MethodPost, PathLogout, nil,
		WithJSON(map[string]string{"refresh": refreshToken}))
	return err
}

// RefreshAccessToken implements Refresher.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	var resp struct {
		Access string `json:"access"`
	}
	_, err := c.Do(ctx, http.MethodPost, PathTokenRefresh, &resp,
		WithJSON(map[string]string{"refresh": refreshToken}),
		withoutAuth())
	if err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", fmt.Errorf("refresh response carried no access token")
	}
	return resp.Access, nil
}

// Profile returns the current user snapshot.
func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	var user model.User
	if _, err := c.Do(ctx, http.MethodGet, PathProfile, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
