package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"springlink/core/node"
	"springlink/model"
)

// testNodeConfig 把 httptest 服务器地址还原成节点配置
func testNodeConfig(t *testing.T, srv *httptest.Server) node.Config {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return node.Config{Host: u.Hostname(), Port: port, Password: "secret"}
}

func TestResolveRewritesSearchQuery(t *testing.T) {
	var gotIdentifier, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentifier = r.URL.Query().Get("identifier")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"loadType":"SEARCH_RESULT","tracks":[{"track":"abc","info":{"identifier":"abc","title":"Song"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	result, err := c.Resolve(context.Background(), testNodeConfig(t, srv), "never gonna give", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if gotIdentifier != "ytsearch:never gonna give" {
		t.Errorf("identifier = %q, want ytsearch rewrite", gotIdentifier)
	}
	if gotAuth != "secret" {
		t.Errorf("Authorization = %q, want secret", gotAuth)
	}
	if result.LoadType != model.LoadTypeSearchResult || len(result.Tracks) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestResolveCustomPrefix(t *testing.T) {
	var gotIdentifier string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentifier = r.URL.Query().Get("identifier")
		w.Write([]byte(`{"loadType":"NO_MATCHES","tracks":[]}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	if _, err := c.Resolve(context.Background(), testNodeConfig(t, srv), "some song", "sc"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if gotIdentifier != "scsearch:some song" {
		t.Errorf("identifier = %q, want scsearch rewrite", gotIdentifier)
	}
}

func TestResolveKeepsAbsoluteURL(t *testing.T) {
	var gotIdentifier string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentifier = r.URL.Query().Get("identifier")
		w.Write([]byte(`{"loadType":"TRACK_LOADED","tracks":[{"track":"abc","info":{}}]}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	if _, err := c.Resolve(context.Background(), testNodeConfig(t, srv), "https://example.com/watch?v=1", ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if gotIdentifier != "https://example.com/watch?v=1" {
		t.Errorf("identifier = %q, want URL passed through", gotIdentifier)
	}
}

func TestResolveEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	_, err := c.Resolve(context.Background(), testNodeConfig(t, srv), "anything", "")
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("Resolve() error = %v, want ErrEmptyResult", err)
	}
}

func TestDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("track"); got != "token-1" {
			t.Errorf("track = %q, want token-1", got)
		}
		w.Write([]byte(`{"identifier":"abc","title":"Song","author":"Artist","length":180000}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	info, err := c.Decode(context.Background(), testNodeConfig(t, srv), "token-1")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if info == nil || info.Title != "Song" || info.Length != 180000 {
		t.Errorf("info = %+v", info)
	}
}

func TestDecodeNodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	info, err := c.Decode(context.Background(), testNodeConfig(t, srv), "bad-token")
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil on node-side failure", err)
	}
	if info != nil {
		t.Errorf("info = %+v, want nil", info)
	}
}
