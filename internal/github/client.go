// Package github is a minimal GitHub App client bound to a single
// repository. It backs the hosted-CI and pull-request phases of the
// self-bootstrap pipeline; local git plumbing stays in gitops.
package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/atthub/atthub/internal/telemetry"
)

const defaultAPIBase = "https://api.github.com"

// Config identifies the App installation and the repository the client
// operates on.
type Config struct {
	AppID          int64
	InstallationID int64 // 0 means discover, requires a single installation
	KeyPath        string
	Owner          string
	Repo           string
	// APIBase overrides the GitHub API endpoint. Tests point it at a
	// local server.
	APIBase string
}

type Client struct {
	cfg        Config
	privateKey *rsa.PrivateKey
	httpClient *http.Client

	mu    sync.Mutex
	token string
	expAt time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}

	raw, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", cfg.KeyPath)
	}
	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Client{
		cfg:        cfg,
		privateKey: key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	pkcs8Key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := pkcs8Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

// SECURITY: JWT signed with RS256 per GitHub App spec.
// 10 min expiry; refreshed with 1 min safety buffer.
func (c *Client) makeJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(c.cfg.AppID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(c.privateKey)
}

type installationTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type installationInfo struct {
	ID int64 `json:"id"`
}

func (c *Client) ensureInstallationID(ctx context.Context) error {
	if c.cfg.InstallationID != 0 {
		return nil
	}

	jwtStr, err := c.makeJWT()
	if err != nil {
		return fmt.Errorf("sign JWT: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBase+"/app/installations?per_page=100", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+jwtStr)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discover installation id: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discover installation id HTTP %d: %s", resp.StatusCode, body)
	}

	var installations []installationInfo
	if err := json.NewDecoder(resp.Body).Decode(&installations); err != nil {
		return fmt.Errorf("decode installations response: %w", err)
	}
	if len(installations) == 0 {
		return fmt.Errorf("no installation found for this GitHub App")
	}
	if len(installations) > 1 {
		return fmt.Errorf("multiple installations found (%d), set ATT_GITHUB_INSTALLATION_ID explicitly", len(installations))
	}

	c.cfg.InstallationID = installations[0].ID
	return nil
}

func (c *Client) installationToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureInstallationID(ctx); err != nil {
		return "", err
	}
	if c.token != "" && time.Now().Before(c.expAt.Add(-time.Minute)) {
		return c.token, nil
	}

	jwtStr, err := c.makeJWT()
	if err != nil {
		return "", fmt.Errorf("sign JWT: %w", err)
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.cfg.APIBase, c.cfg.InstallationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+jwtStr)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("installation token HTTP %d: %s", resp.StatusCode, body)
	}

	var tok installationTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.token = tok.Token
	c.expAt = tok.ExpiresAt
	return c.token, nil
}

// repoURL builds an API URL under the bound repository.
func (c *Client) repoURL(format string, args ...any) string {
	return c.cfg.APIBase + "/repos/" + c.cfg.Owner + "/" + c.cfg.Repo + fmt.Sprintf(format, args...)
}

func (c *Client) doAPI(ctx context.Context, method, url string, body any) (*http.Response, error) {
	token, err := c.installationToken(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// PullRequest is the subset of the API object the pipeline reads.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Merged  bool   `json:"merged"`
}

type createPullRequestInput struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
}

type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}

// CreatePullRequest opens a pull request from head onto base. Transient
// failures are retried with capped backoff.
func (c *Client) CreatePullRequest(ctx context.Context, title, body, base, head string) (*PullRequest, error) {
	url := c.repoURL("/pulls")
	in := createPullRequestInput{Title: title, Head: head, Base: base, Body: body}
	const maxAttempts = 4

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.doAPI(ctx, http.MethodPost, url, in)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts && isRetryableError(err) {
				if !sleepWithBackoff(ctx, attempt, 0) {
					return nil, ctx.Err()
				}
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusCreated {
			defer resp.Body.Close()
			var pr PullRequest
			if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
				return nil, fmt.Errorf("decode pull request: %w", err)
			}
			return &pr, nil
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("create pull request HTTP %d and read body failed: %w", resp.StatusCode, readErr)
		} else {
			telemetry.IncGitHubAPIError("create pull request", resp.StatusCode)
			lastErr = &APIError{Operation: "create pull request", StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		retryAfter := retryAfterDuration(resp)
		if attempt < maxAttempts && isRetryableStatus(resp.StatusCode) {
			if !sleepWithBackoff(ctx, attempt, retryAfter) {
				return nil, ctx.Err()
			}
			continue
		}
		return nil, lastErr
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("create pull request failed")
	}
	return nil, lastErr
}

// MergePullRequest merges the numbered pull request. Method is one of
// merge, squash, rebase.
func (c *Client) MergePullRequest(ctx context.Context, number int, method string) error {
	url := c.repoURL("/pulls/%d/merge", number)
	payload := map[string]string{"merge_method": method}

	resp, err := c.doAPI(ctx, http.MethodPut, url, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("merge pull request HTTP %d and read body failed: %w", resp.StatusCode, readErr)
		}
		telemetry.IncGitHubAPIError("merge pull request", resp.StatusCode)
		return &APIError{Operation: "merge pull request", StatusCode: resp.StatusCode, Body: string(b)}
	}
	return nil
}

type combinedStatusResponse struct {
	State string `json:"state"`
}

// CombinedStatus returns the combined commit status for a ref:
// success, failure, error, or pending.
func (c *Client) CombinedStatus(ctx context.Context, ref string) (string, error) {
	url := c.repoURL("/commits/%s/status", ref)
	resp, err := c.doAPI(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("combined status HTTP %d and read body failed: %w", resp.StatusCode, readErr)
		}
		telemetry.IncGitHubAPIError("combined status", resp.StatusCode)
		return "", &APIError{Operation: "combined status", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var status combinedStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("decode combined status: %w", err)
	}
	return status.State, nil
}

func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func retryAfterDuration(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}
	return 0
}

func sleepWithBackoff(ctx context.Context, attempt int, retryAfter time.Duration) bool {
	base := 250 * time.Millisecond
	max := 5 * time.Second
	backoff := base * time.Duration(1<<(attempt-1))
	if backoff > max {
		backoff = max
	}
	jitter := time.Duration(rand.Intn(200)) * time.Millisecond
	wait := backoff + jitter
	if retryAfter > wait {
		wait = retryAfter
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
