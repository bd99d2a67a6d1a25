package cdf

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/permafrost-io/groupctl/internal/config"
	"github.com/permafrost-io/groupctl/internal/logging"
)

// redirectPort is the fixed local redirect port the interactive flow's app
// registration expects. When it is taken (on WSL it often is), the
// device-code flow is the one that works, which is why it is tried first.
const redirectPort = 53000

// DefaultTokenCacheDir returns the per-user token cache directory.
func DefaultTokenCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cognite", "token_cache")
	}
	return filepath.Join(home, ".cognite", "token_cache")
}

// authStrategy is one way of obtaining a token source. Strategies are tried
// in order; the first success wins.
type authStrategy struct {
	name    string
	acquire func(ctx context.Context) (oauth2.TokenSource, error)
}

// NewClientWithFallback authenticates against a customer's tenant, trying
// the device-code flow first and the interactive flow second, and returns a
// ready client. When every strategy fails, the last real error is returned.
func NewClientWithFallback(ctx context.Context, cust config.Customer, tokenCachePath string) (*Client, error) {
	cfg := oauthConfig(cust)
	strategies := []authStrategy{
		{
			name: "device-code",
			acquire: func(ctx context.Context) (oauth2.TokenSource, error) {
				return deviceCodeTokenSource(ctx, cfg, tokenCachePath)
			},
		},
		{
			name: "interactive",
			acquire: func(ctx context.Context) (oauth2.TokenSource, error) {
				return interactiveTokenSource(ctx, cfg, tokenCachePath)
			},
		},
	}

	tokens, err := authenticate(ctx, strategies)
	if err != nil {
		return nil, err
	}
	return NewClient(cust.BaseURL(), cust.Project, tokens), nil
}

// authenticate runs the ordered strategy list. Every failure is logged and
// kept; the error returned after exhaustion is the last strategy's own
// error, never a placeholder.
func authenticate(ctx context.Context, strategies []authStrategy) (oauth2.TokenSource, error) {
	if len(strategies) == 0 {
		return nil, errors.New("cdf: no authentication strategies configured")
	}
	var lastErr error
	for _, s := range strategies {
		tokens, err := s.acquire(ctx)
		if err != nil {
			lastErr = err
			logging.Op().Warn("authentication strategy failed", "strategy", s.name, "err", err)
			continue
		}
		return tokens, nil
	}
	return nil, lastErr
}

// oauthConfig builds the Azure AD v2.0 endpoints for a customer tenant.
func oauthConfig(cust config.Customer) *oauth2.Config {
	authority := "https://login.microsoftonline.com/" + cust.TenantID + "/oauth2/v2.0"
	return &oauth2.Config{
		ClientID: cust.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:       authority + "/authorize",
			TokenURL:      authority + "/token",
			DeviceAuthURL: authority + "/devicecode",
		},
		Scopes:      []string{cust.BaseURL() + "/.default", "offline_access"},
		RedirectURL: fmt.Sprintf("http://localhost:%d", redirectPort),
	}
}

// deviceCodeTokenSource runs the OAuth device-code flow: no local port, the
// user opens a URL on any machine and enters a short code.
func deviceCodeTokenSource(ctx context.Context, cfg *oauth2.Config, cachePath string) (oauth2.TokenSource, error) {
	if tokens := cachedTokenSource(ctx, cfg, cachePath); tokens != nil {
		return tokens, nil
	}

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device-code: request code: %w", err)
	}
	fmt.Fprintf(os.Stderr, "To sign in, open %s and enter the code %s\n", da.VerificationURI, da.UserCode)

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("device-code: wait for token: %w", err)
	}
	saveToken(cachePath, tok)
	return &savingTokenSource{src: cfg.TokenSource(ctx, tok), path: cachePath}, nil
}

// interactiveTokenSource runs the browser auth-code flow with a local
// redirect listener on the fixed port.
func interactiveTokenSource(ctx context.Context, cfg *oauth2.Config, cachePath string) (oauth2.TokenSource, error) {
	if tokens := cachedTokenSource(ctx, cfg, cachePath); tokens != nil {
		return tokens, nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", redirectPort))
	if err != nil {
		return nil, fmt.Errorf("interactive: redirect port %d unavailable: %w", redirectPort, err)
	}
	defer ln.Close()

	state, err := randomState()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Open this URL in a browser to sign in:\n%s\n", cfg.AuthCodeURL(state))

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- errors.New("interactive: state mismatch on redirect")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- errors.New("interactive: redirect carried no code")
			return
		}
		fmt.Fprintln(w, "Signed in. You can close this window.")
		codeCh <- code
	})}
	go srv.Serve(ln)
	defer srv.Close()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("interactive: %w", ctx.Err())
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("interactive: exchange code: %w", err)
	}
	saveToken(cachePath, tok)
	return &savingTokenSource{src: cfg.TokenSource(ctx, tok), path: cachePath}, nil
}

// cachedTokenSource returns a token source seeded from the cache file, or
// nil when there is no usable cached token. A cached refresh token is enough;
// the source refreshes on demand.
func cachedTokenSource(ctx context.Context, cfg *oauth2.Config, cachePath string) oauth2.TokenSource {
	if cachePath == "" {
		return nil
	}
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		logging.Op().Warn("discarding unreadable token cache", "path", cachePath, "err", err)
		return nil
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil
	}
	return &savingTokenSource{src: cfg.TokenSource(ctx, &tok), path: cachePath}
}

// savingTokenSource persists refreshed tokens back to the cache file so the
// next run skips the sign-in flow.
type savingTokenSource struct {
	src  oauth2.TokenSource
	path string
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		saveToken(s.path, tok)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logging.Op().Warn("cannot create token cache dir", "path", path, "err", err)
		return
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		logging.Op().Warn("cannot write token cache", "path", path, "err", err)
	}
}

func randomState() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("interactive: generate state: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}
