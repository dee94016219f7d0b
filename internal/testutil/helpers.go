package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
)

// MockServerBuilder provides a fluent interface for creating mock RestBackup
// servers. Handlers are keyed by "METHOD /path"; a key of just "/path" matches
// any method.
//
// Example usage:
//
//	server := testutil.NewMockServer().
//	    WithStatusSequence(http.MethodGet, "/", 503, 503, 200).
//	    Build()
//	defer server.Close()
type MockServerBuilder struct {
	handlers map[string]http.HandlerFunc
	user     string
	password string
	useTLS   bool
}

// NewMockServer creates a new MockServerBuilder.
func NewMockServer() *MockServerBuilder {
	return &MockServerBuilder{
		handlers: make(map[string]http.HandlerFunc),
		user:     TestUser,
		password: TestPassword,
	}
}

// WithTLS enables TLS for the mock server.
func (b *MockServerBuilder) WithTLS() *MockServerBuilder {
	b.useTLS = true
	return b
}

// WithBasicAuth sets the credentials the server accepts. Requests with other
// credentials get 401. The defaults are TestUser and TestPassword.
func (b *MockServerBuilder) WithBasicAuth(user, password string) *MockServerBuilder {
	b.user = user
	b.password = password
	return b
}

// WithCustomEndpoint adds a handler for method and path. An empty method
// matches any method.
func (b *MockServerBuilder) WithCustomEndpoint(method, path string, handler http.HandlerFunc) *MockServerBuilder {
	b.handlers[key(method, path)] = handler
	return b
}

// WithJSONResponse answers method and path with status and the JSON encoding of body.
func (b *MockServerBuilder) WithJSONResponse(method, path string, status int, body interface{}) *MockServerBuilder {
	return b.WithCustomEndpoint(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RequestIDHeader, TestRequestID)
		writeJSONResponse(w, status, body)
	})
}

// WithTextResponse answers method and path with status and a plain text body.
func (b *MockServerBuilder) WithTextResponse(method, path string, status int, body string) *MockServerBuilder {
	return b.WithCustomEndpoint(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ContentTypeHeader, ContentTypeText)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// WithCreateAccount answers POST / with 201 and account.
func (b *MockServerBuilder) WithCreateAccount(account map[string]interface{}) *MockServerBuilder {
	return b.WithJSONResponse(http.MethodPost, "/", http.StatusCreated, account)
}

// WithAccount answers GET accountID with 200 and account.
func (b *MockServerBuilder) WithAccount(accountID string, account map[string]interface{}) *MockServerBuilder {
	return b.WithJSONResponse(http.MethodGet, accountID, http.StatusOK, account)
}

// WithAccountList answers GET / with 200 and accounts.
func (b *MockServerBuilder) WithAccountList(accounts []map[string]interface{}) *MockServerBuilder {
	return b.WithJSONResponse(http.MethodGet, "/", http.StatusOK, accounts)
}

// WithFileList answers GET / with 200 and files, like the Backup API listing.
func (b *MockServerBuilder) WithFileList(files []map[string]interface{}) *MockServerBuilder {
	return b.WithJSONResponse(http.MethodGet, "/", http.StatusOK, files)
}

// WithErrorResponse answers method and path with statusCode and its status text.
func (b *MockServerBuilder) WithErrorResponse(method, path string, statusCode int) *MockServerBuilder {
	return b.WithTextResponse(method, path, statusCode, http.StatusText(statusCode))
}

// WithStatusSequence answers successive requests to method and path with
// codes in order, repeating the last one. Non-2xx answers carry the status
// text as body; 2xx answers carry "ok".
func (b *MockServerBuilder) WithStatusSequence(method, path string, codes ...int) *MockServerBuilder {
	var n atomic.Int64
	return b.WithCustomEndpoint(method, path, func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		if i >= len(codes) {
			i = len(codes) - 1
		}
		code := codes[i]
		w.WriteHeader(code)
		if code >= 200 && code <= 299 {
			_, _ = io.WriteString(w, "ok")
			return
		}
		_, _ = io.WriteString(w, http.StatusText(code))
	})
}

// Build creates and starts the configured HTTP test server.
func (b *MockServerBuilder) Build() *MockServer {
	s := &MockServer{user: b.user, password: b.password}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.record(RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   string(body),
		})

		user, password, ok := r.BasicAuth()
		if !ok || user != b.user || password != b.password {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, "Unauthorized")
			return
		}

		if h, ok := b.handlers[key(r.Method, r.URL.Path)]; ok {
			h(w, r)
			return
		}
		if h, ok := b.handlers[key("", r.URL.Path)]; ok {
			h(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "Not Found")
	})

	if b.useTLS {
		s.Server = httptest.NewTLSServer(handler)
	} else {
		s.Server = httptest.NewServer(handler)
	}
	return s
}

// RecordedRequest is a request as the mock server saw it.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// MockServer is a running mock RestBackup server.
type MockServer struct {
	*httptest.Server
	user     string
	password string

	mu       sync.Mutex
	requests []RecordedRequest
}

func (s *MockServer) record(r RecordedRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
}

// Requests returns the requests received so far.
func (s *MockServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// RequestCount returns how many requests the server received.
func (s *MockServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// AccessURL returns an access-URL for the server with the accepted credentials.
func (s *MockServer) AccessURL() string {
	return s.AccessURLWith(s.user, s.password)
}

// AccessURLWith returns an access-URL for the server with the given credentials.
func (s *MockServer) AccessURLWith(user, password string) string {
	u, err := url.Parse(s.URL)
	if err != nil {
		panic(fmt.Sprintf("httptest server URL %q: %v", s.URL, err))
	}
	return fmt.Sprintf("%s://%s:%s@%s/", u.Scheme, user, password, u.Host)
}

// SampleAccount returns the JSON object of a Management API account.
func SampleAccount() map[string]interface{} {
	return map[string]interface{}{
		"account":     TestAccountID,
		"retaindays":  TestRetainDays,
		"description": TestDescription,
		"access-url":  TestBackupAccessURL,
	}
}

// SampleFileList returns a Backup API listing of two files.
func SampleFileList() []map[string]interface{} {
	return []map[string]interface{}{
		{"name": "/file1", "size": 1234, "createtime": 1274439603, "deletetime": 1305975603},
		{"name": "/file2", "size": 5678, "createtime": 1274526004, "deletetime": 1306062004},
	}
}

// RequireRequest fails the test unless the server received at least n
// requests, and returns the n-th one (1-based).
func RequireRequest(t *testing.T, s *MockServer, n int) RecordedRequest {
	t.Helper()
	requests := s.Requests()
	if len(requests) < n {
		t.Fatalf("Expected at least %d requests, got %d", n, len(requests))
	}
	return requests[n-1]
}

func key(method, path string) string {
	if method == "" {
		return path
	}
	return method + " " + path
}

// writeJSONResponse writes status and the JSON encoding of data.
func writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set(ContentTypeHeader, ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
