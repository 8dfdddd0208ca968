package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrisonrobin/taskbridge/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// ClientSecretsFile is the downloaded Google API credentials file, looked
	// up in the config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile caches the OAuth token (access + refresh) in the config
	// directory.
	TokenFile = "token.json"

	// LocalhostAuthPort is the port the local web server listens on to
	// capture the OAuth redirect.
	LocalhostAuthPort = "6789"
)

// GetConfig creates an oauth2.Config from the client secrets file in dir.
func GetConfig(ctx context.Context, dir string, scopes []string) (*oauth2.Config, error) {
	log := logger.FromContext(ctx)

	clientSecretsFile := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(clientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", clientSecretsFile, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	parsedURL, parseErr := url.Parse(config.RedirectURL)
	switch {
	case parseErr != nil:
		log.Warn("could not parse redirect URL, using it as is", "url", config.RedirectURL, "err", parseErr)
	case parsedURL.Hostname() == "localhost" || parsedURL.Hostname() == "127.0.0.1":
		// The listener always binds LocalhostAuthPort, so the redirect must
		// carry it too.
		if parsedURL.Port() != LocalhostAuthPort {
			if parsedURL.Port() != "" {
				log.Warn("forcing localhost redirect port", "configured", parsedURL.Port(), "port", LocalhostAuthPort)
			}
			parsedURL.Host = net.JoinHostPort(parsedURL.Hostname(), LocalhostAuthPort)
			config.RedirectURL = parsedURL.String()
		}
	case config.RedirectURL == "urn:ietf:wg:oauth:2.0:oob":
		config.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		log.Info("overriding out-of-band redirect URL", "url", config.RedirectURL)
	default:
		log.Warn("redirect URL is not a localhost callback", "url", config.RedirectURL)
	}

	return config, nil
}

// GetClient retrieves an authenticated *http.Client. It loads the cached
// token from dir, or runs the browser flow when there is none. Refreshed
// tokens are written back to the cache.
func GetClient(ctx context.Context, dir string, scopes []string) (*http.Client, error) {
	log := logger.FromContext(ctx)

	config, err := GetConfig(ctx, dir, scopes)
	if err != nil {
		return nil, err
	}

	tokenFile := filepath.Join(dir, TokenFile)
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		log.Info("no cached token, starting web authorization flow", "path", tokenFile)
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}

	ts := &savingTokenSource{
		base: config.TokenSource(ctx, tok),
		path: tokenFile,
		last: tok,
		log:  log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts)), nil
}

// ResetToken removes the cached token so the next GetClient re-authorizes.
func ResetToken(dir string) error {
	tokenFile := filepath.Join(dir, TokenFile)
	if err := os.Remove(tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete token file '%s': %w", tokenFile, err)
	}
	return nil
}

// savingTokenSource persists a token whenever the underlying source hands out
// a different one.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string
	log  logger.Logger

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			s.log.Warn("could not persist refreshed token", "err", err)
		}
		s.last = tok
	}
	return tok, nil
}

// getTokenFromWeb runs the authorization code flow through a local web
// server that captures the redirect.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	log := logger.FromContext(ctx)
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()
	defer server.Shutdown(context.Background())

	// AccessTypeOffline makes Google return a refresh token.
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Please open the following URL in your browser to authorize taskbridge:\n%s\n", authURL)
	log.Info("waiting for authorization code", "redirect", config.RedirectURL)

	select {
	case authCode := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exCtx, authCode)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, errors.New("authorization timed out. Please try again")
	}
}

// tokenFromFile reads an oauth2.Token from a JSON file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

// saveToken writes an oauth2.Token to a JSON file readable only by the owner.
func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
