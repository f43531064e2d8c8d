package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/jernst/mailsheets/internal/instrumentation"
	"github.com/jernst/mailsheets/internal/logging"
)

// Default locations for the client secrets and the persisted token.
const (
	DefaultCredentialsFile = "credentials/credentials.json"
	DefaultTokenFile       = "credentials/token.json"
)

// ErrReauthRequired is returned by Obtain in fetch-only mode when no usable
// token exists. The operator must run the setup command.
var ErrReauthRequired = errors.New("token not found or expired; run setup manually")

// Options configures a Store.
type Options struct {
	// CredentialsFile is the path to the Google "installed app" client
	// secrets JSON.
	CredentialsFile string

	// TokenFile is the path where the granted token is persisted.
	TokenFile string

	// FetchOnly disables the interactive authorization flow. Obtain fails
	// with ErrReauthRequired instead of opening a callback listener.
	FetchOnly bool

	// Scopes requested during authorization. Defaults to DefaultScopes.
	Scopes []string

	// Logger for credential lifecycle events. Defaults to the process logger.
	Logger logging.Logger

	// Metrics records token refresh outcomes. Optional.
	Metrics *instrumentation.Metrics

	// Config overrides the OAuth2 configuration loaded from
	// CredentialsFile. Used by tests to point the token endpoint at a stub.
	Config *oauth2.Config
}

// Store manages the persisted OAuth2 credential for the process. It is the
// only component that touches the token file and the authorization flow.
// All methods are safe for concurrent use; refresh-and-persist is serialized
// so concurrent sessions cannot race to write inconsistent tokens.
type Store struct {
	credentialsFile string
	tokenFile       string
	scopes          []string
	fetchOnly       bool
	logger          logging.Logger
	metrics         *instrumentation.Metrics

	mu     sync.Mutex
	config *oauth2.Config

	// authorize runs the interactive flow. Swapped out in tests to assert
	// the flow is never started in fetch-only mode.
	authorize func(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)
}

// NewStore creates a credential store.
func NewStore(opts Options) *Store {
	if opts.CredentialsFile == "" {
		opts.CredentialsFile = DefaultCredentialsFile
	}
	if opts.TokenFile == "" {
		opts.TokenFile = DefaultTokenFile
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}

	s := &Store{
		credentialsFile: opts.CredentialsFile,
		tokenFile:       opts.TokenFile,
		scopes:          opts.Scopes,
		fetchOnly:       opts.FetchOnly,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		config:          opts.Config,
	}
	s.authorize = s.authorizeInteractive
	return s
}

// persistedToken is the on-disk form of the credential: tokens, expiry and
// the granted scope set.
type persistedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes"`
}

// HasToken reports whether a persisted token file exists.
func (s *Store) HasToken() bool {
	_, err := os.Stat(s.tokenFile)
	return err == nil
}

// Obtain returns a usable credential for the configured scopes.
//
// An unexpired persisted token is returned unchanged. An expired token with
// a refresh token is refreshed and the result persisted. Otherwise the
// interactive flow runs, unless the store is fetch-only, in which case
// ErrReauthRequired is returned.
func (s *Store) Obtain(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.loadToken()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to load persisted token, treating as absent",
			logging.KeyError, err.Error())
		tok = nil
	}

	if tok != nil && tok.Valid() {
		return tok, nil
	}

	conf, err := s.oauthConfig()
	if err != nil {
		return nil, err
	}

	if tok != nil && tok.RefreshToken != "" {
		refreshed, err := conf.TokenSource(ctx, tok).Token()
		if err == nil {
			s.logger.Info("refreshed Google OAuth token",
				"token", logging.SanitizeToken(refreshed.AccessToken),
				"expiry", refreshed.Expiry)
			if s.metrics != nil {
				s.metrics.RecordOAuthTokenRefresh(ctx, "success")
			}
			if perr := s.persist(refreshed); perr != nil {
				return nil, fmt.Errorf("failed to persist refreshed token: %w", perr)
			}
			return refreshed, nil
		}
		s.logger.Warn("token refresh failed", logging.KeyError, err.Error())
		if s.metrics != nil {
			s.metrics.RecordOAuthTokenRefresh(ctx, "failure")
		}
		// Fall through: the refresh token is no longer honored, so the
		// credential is terminal without re-authorization.
	}

	if s.fetchOnly {
		return nil, ErrReauthRequired
	}

	granted, err := s.authorize(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("interactive authorization failed: %w", err)
	}
	if err := s.persist(granted); err != nil {
		return nil, fmt.Errorf("failed to persist granted token: %w", err)
	}
	return granted, nil
}

// TokenSource returns an oauth2.TokenSource backed by the store. Tokens
// refreshed by the source during normal operation are persisted, so the
// on-disk credential always reflects the last successful refresh.
func (s *Store) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := s.Obtain(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	conf, err := s.oauthConfig()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &persistingTokenSource{
		store: s,
		src:   conf.TokenSource(ctx, tok),
		last:  tok.AccessToken,
	}, nil
}

// Client returns an HTTP client that injects the stored credential and
// refreshes it transparently.
func (s *Store) Client(ctx context.Context) (*http.Client, error) {
	ts, err := s.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}

func (s *Store) oauthConfig() (*oauth2.Config, error) {
	if s.config != nil {
		return s.config, nil
	}

	data, err := os.ReadFile(s.credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets file %s: %w", s.credentialsFile, err)
	}
	conf, err := googleoauth.ConfigFromJSON(data, s.scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets file %s: %w", s.credentialsFile, err)
	}
	s.config = conf
	return conf, nil
}

func (s *Store) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.tokenFile)
	if err != nil {
		return nil, err
	}

	var pt persistedToken
	if err := json.Unmarshal(data, &pt); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", s.tokenFile, err)
	}
	if !scopesCover(pt.Scopes, s.scopes) {
		// Granted scopes no longer cover what the tools need; force
		// re-authorization rather than failing on the first API call.
		return nil, fmt.Errorf("persisted token scopes do not cover requested scopes: %w", os.ErrNotExist)
	}

	return &oauth2.Token{
		AccessToken:  pt.AccessToken,
		RefreshToken: pt.RefreshToken,
		TokenType:    pt.TokenType,
		Expiry:       pt.Expiry,
	}, nil
}

// persist writes the credential to the token file. The write is atomic
// (temp file then rename) so a crash mid-write cannot corrupt a previously
// valid token.
func (s *Store) persist(tok *oauth2.Token) error {
	pt := persistedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       s.scopes,
	}

	data, err := json.MarshalIndent(pt, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.tokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp token file: %w", err)
	}
	if err := os.Rename(tmpName, s.tokenFile); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// authorizeInteractive runs the installed-app flow: a loopback callback
// listener on an ephemeral port, the authorization URL printed for the
// operator, and the returned code exchanged for a token.
func (s *Store) authorizeInteractive(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to open callback listener: %w", err)
	}
	defer ln.Close()

	// The redirect must match the ephemeral listener address.
	redirectConf := *conf
	redirectConf.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	authURL := redirectConf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(os.Stderr, "Visit the following URL to authorize access:\n\n  %s\n\n", authURL)

	type callbackResult struct {
		code string
		err  error
	}
	resultCh := make(chan callbackResult, 1)

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				resultCh <- callbackResult{err: errors.New("authorization state mismatch")}
				return
			}
			if errMsg := q.Get("error"); errMsg != "" {
				http.Error(w, "authorization denied", http.StatusBadRequest)
				resultCh <- callbackResult{err: fmt.Errorf("authorization denied: %s", errMsg)}
				return
			}
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
			resultCh <- callbackResult{code: q.Get("code")}
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	defer srv.Close()

	var code string
	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tok, err := redirectConf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	s.logger.Info("Google authorization granted",
		"token", logging.SanitizeToken(tok.AccessToken),
		"expiry", tok.Expiry)
	return tok, nil
}

// persistingTokenSource persists tokens refreshed by the wrapped source so
// the on-disk credential follows the live one.
type persistingTokenSource struct {
	store *Store
	src   oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	changed := tok.AccessToken != p.last
	if changed {
		p.last = tok.AccessToken
	}
	p.mu.Unlock()

	if changed {
		p.store.mu.Lock()
		perr := p.store.persist(tok)
		p.store.mu.Unlock()
		if perr != nil {
			p.store.logger.Warn("failed to persist refreshed token",
				logging.KeyError, perr.Error())
		}
	}
	return tok, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func scopesCover(granted, requested []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
