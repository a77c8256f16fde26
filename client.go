package georitm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	logp "github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "georitm",
})

// SetLogLevel sets the level of the client logger.
func SetLogLevel(level logp.Level) {
	log.SetLevel(level)
}

const (
	DefaultBaseURL = "https://core.geo.ritm.ru"
	defaultTimeout = 15 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.88 Safari/537.36"
)

const (
	pathLogin  = "/restapi/users/login/"
	pathTree   = "/restapi/objects/objects-tree-set/"
	pathObject = "/restapi/objects/obj/"
	pathAreas  = "/restapi/objects/obj-areas/"
	pathArm    = "/restapi/objects/arm/"
	pathDisarm = "/restapi/objects/disarm/"
)

var (
	ErrInvalidCredentials = errors.New("login and password are required")
	ErrLoginFailed        = errors.New("could not authenticate using the provided credentials")
	ErrUnauthorized       = errors.New("session is not authorized")
)

// Credentials used to authenticate against the vendor API.
type Credentials struct {
	Login    string
	Password string
}

// NewCredentials builds the credentials from the configured login, its
// legacy alias email, and the password.
// Email is only used when login is empty.
func NewCredentials(login, email, password string) (Credentials, error) {
	login = strings.TrimSpace(login)
	email = strings.TrimSpace(email)
	if login != "" && email != "" && login != email {
		return Credentials{}, fmt.Errorf("login and email are mutually exclusive")
	}
	if login == "" {
		login = email
	}
	if login == "" || password == "" {
		return Credentials{}, ErrInvalidCredentials
	}
	return Credentials{
		Login:    login,
		Password: password,
	}, nil
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration

	// Backoff builds the retry policy used by Login.
	// Defaults to an exponential backoff giving up after a minute.
	Backoff func() backoff.BackOff
}

// Client talks to the vendor REST API.
// It is safe for concurrent use.
type Client struct {
	http    *resty.Client
	creds   Credentials
	backoff func() backoff.BackOff

	mu    sync.RWMutex
	token string
}

// LoginResult is what a successful login reports about the account.
type LoginResult struct {
	MobileCount     int
	StationaryCount int
}

func New(creds Credentials, opts Options) (*Client, error) {
	if creds.Login == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Backoff == nil {
		opts.Backoff = defaultBackoff
	}

	cli := &Client{
		creds:   creds,
		backoff: opts.Backoff,
	}
	cli.http = resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if token := cli.Token(); token != "" && r.URL != pathLogin {
				r.SetHeader("Authorization", "Basic "+token)
			}
			return nil
		})
	return cli, nil
}

func defaultBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Second * 10
	bo.MaxElapsedTime = time.Minute
	return bo
}

// Token returns the current session token, empty before the first login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username        *string `json:"username"`
	Basic           *string `json:"basic"`
	MobileCount     Int     `json:"mobileCount"`
	StationaryCount Int     `json:"stationaryCount"`
}

// Login authenticates and replaces the session token.
//
// Authentication failures (non-200 answers or a body without a token) are
// retried with the same credentials until the backoff policy gives up, in
// which case ErrLoginFailed is returned. Transport errors are returned as is.
func (c *Client) Login(ctx context.Context) (LoginResult, error) {
	var result LoginResult
	var attempt int
	err := backoff.RetryNotify(func() error {
		attempt++
		log.Debug("login", "attempt", attempt, "login", c.creds.Login)
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(loginRequest{
				Login:    c.creds.Login,
				Password: c.creds.Password,
			}).
			Post(pathLogin)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("could not login: %w", err))
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode())
		}

		var body loginResponse
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return fmt.Errorf("%w: %v", ErrLoginFailed, err)
		}
		if body.Basic == nil || *body.Basic == "" {
			return fmt.Errorf("%w: response has no token", ErrLoginFailed)
		}

		c.mu.Lock()
		c.token = *body.Basic
		c.mu.Unlock()

		result = LoginResult{
			MobileCount:     int(body.MobileCount),
			StationaryCount: int(body.StationaryCount),
		}
		return nil
	}, backoff.WithContext(c.backoff(), ctx), func(err error, next time.Duration) {
		log.Error("could not authenticate, retrying", "err", err, "next", next)
	})
	if err != nil {
		if !errors.Is(err, ErrLoginFailed) {
			return LoginResult{}, err
		}
		return LoginResult{}, fmt.Errorf("gave up after %d attempts: %w", attempt, err)
	}

	log.Info("logged in", "mobileCount", result.MobileCount, "stationaryCount", result.StationaryCount)
	return result, nil
}

// post sends an authenticated JSON request and returns the response body of
// 200 answers. Other statuses yield a nil body and no error, except for
// 401/403 which yield ErrUnauthorized.
func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("could not post %s: %w", path, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return resp.Body(), nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("could not post %s: %w", path, ErrUnauthorized)
	default:
		log.Warn("unexpected response", "path", path, "status", resp.StatusCode())
		return nil, nil
	}
}
