package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atthub/atthub/internal/bootstrap"
)

func writeTestKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(t.TempDir(), "app.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}

// fakeAPI serves the token endpoint plus whatever repo routes the test
// registers.
func fakeAPI(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	mux.HandleFunc("POST /app/installations/7/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"token":      "test-token",
			"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := fakeAPI(t, mux)
	c, err := NewClient(Config{
		AppID:          99,
		InstallationID: 7,
		KeyPath:        writeTestKey(t),
		Owner:          "acme",
		Repo:           "widget",
		APIBase:        srv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresRepo(t *testing.T) {
	if _, err := NewClient(Config{AppID: 1, KeyPath: "/nonexistent"}); err == nil {
		t.Fatal("expected error for missing owner/repo")
	}
}

func TestCombinedStatusProviderMapping(t *testing.T) {
	tests := []struct {
		state string
		want  string
	}{
		{"success", bootstrap.CISuccess},
		{"failure", bootstrap.CIFailure},
		{"error", bootstrap.CIFailure},
		{"pending", bootstrap.CIPending},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /repos/acme/widget/commits/HEAD/status", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"state": tt.state})
			})
			c := newTestClient(t, mux)
			providers := Providers(c, "", "")

			got, err := providers.CIStatus(context.Background())
			if err != nil {
				t.Fatalf("CIStatus: %v", err)
			}
			if got != tt.want {
				t.Fatalf("state %q mapped to %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

func TestCreatePullRequestRetriesTransientFailure(t *testing.T) {
	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widget/pulls", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"number":   42,
			"title":    "update",
			"html_url": "https://github.com/acme/widget/pull/42",
		})
	})
	c := newTestClient(t, mux)

	pr, err := c.CreatePullRequest(context.Background(), "update", "", "main", "bootstrap-1")
	if err != nil {
		t.Fatalf("CreatePullRequest: %v", err)
	}
	if pr.Number != 42 {
		t.Fatalf("number = %d, want 42", pr.Number)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestCreatePullRequestDoesNotRetryClientError(t *testing.T) {
	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widget/pulls", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"validation failed"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.CreatePullRequest(context.Background(), "update", "", "main", "bootstrap-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not an APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", apiErr.StatusCode)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestMergeProviderParsesPRURL(t *testing.T) {
	var gotMethod string
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/acme/widget/pulls/42/merge", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		gotMethod = payload["merge_method"]
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"merged":true}`))
	})
	c := newTestClient(t, mux)
	providers := Providers(c, "", "squash")

	if err := providers.PRMerge(context.Background(), "https://github.com/acme/widget/pull/42"); err != nil {
		t.Fatalf("PRMerge: %v", err)
	}
	if gotMethod != "squash" {
		t.Fatalf("merge_method = %q, want squash", gotMethod)
	}
}

func TestPRNumberFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    int
		wantErr bool
	}{
		{"https://github.com/acme/widget/pull/42", 42, false},
		{"https://github.com/acme/widget/pull/42/", 42, false},
		{"https://github.com/acme/widget/pull/zero", 0, true},
		{"no-slashes", 0, true},
		{"https://github.com/acme/widget/pull/-3", 0, true},
	}
	for _, tt := range tests {
		n, err := prNumberFromURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tt.url, err)
			continue
		}
		if n != tt.want {
			t.Errorf("%q: got %d, want %d", tt.url, n, tt.want)
		}
	}
}
