package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Canned Ploi API payloads in the remote snake_case shape.
const (
	ServersJSON = `{"data": [
		{"id": 2, "name": "web-2", "ip_address": "10.0.0.2", "ssh_port": 22, "php_version": "8.3", "status": "active", "sites_count": 1},
		{"id": 1, "name": "Alpha", "ip_address": "10.0.0.1", "ssh_port": 2222, "php_version": "8.2", "status": "active", "sites_count": 2}
	]}`

	SitesJSON = `{"data": [
		{"id": 11, "server_id": 1, "domain": "shop.example.com", "status": "active", "project_type": "laravel"},
		{"id": 10, "server_id": 1, "domain": "blog.example.com", "status": "active", "project_type": "wordpress"}
	]}`

	SiteJSON = `{"data": {"id": 10, "server_id": 1, "domain": "blog.example.com", "status": "active", "project_type": "wordpress", "has_repository": true}}`

	InvalidKeyJSON = `{"errors": ["Unauthenticated."]}`

	EmptyJSON = `{}`
)

// Request is a request seen by the fake API.
type Request struct {
	Method string
	Path   string
	Header http.Header
}

// Route returns "METHOD /path".
func (r Request) Route() string {
	return r.Method + " " + r.Path
}

// FakePloiAPI is an httptest server answering Ploi API routes with canned
// responses. Unregistered routes answer 404.
type FakePloiAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
}

// NewFakePloiAPI starts a fake API that is closed when the test finishes.
func NewFakePloiAPI(t *testing.T) *FakePloiAPI {
	t.Helper()
	f := &FakePloiAPI{routes: make(map[string]http.HandlerFunc)}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *FakePloiAPI) serve(w http.ResponseWriter, r *http.Request) {
	req := Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	h, ok := f.routes[req.Route()]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// URL is the base URL to configure the client with.
func (f *FakePloiAPI) URL() string {
	return f.server.URL
}

// Client returns an HTTP client for the fake server.
func (f *FakePloiAPI) Client() *http.Client {
	return f.server.Client()
}

// Handle registers a canned JSON response.
func (f *FakePloiAPI) Handle(method, path string, status int, body string) {
	f.HandleFunc(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// HandleFunc registers a custom handler.
func (f *FakePloiAPI) HandleFunc(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

// Requests returns every request received so far.
func (f *FakePloiAPI) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Count returns how many times the route was requested.
func (f *FakePloiAPI) Count(method, path string) int {
	route := method + " " + path
	n := 0
	for _, r := range f.Requests() {
		if r.Route() == route {
			n++
		}
	}
	return n
}
