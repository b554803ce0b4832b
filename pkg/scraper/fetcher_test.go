package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Slopscope/1.0", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(oldRedditPage)) //nolint:errcheck
	}))
	defer server.Close()

	fetcher := NewPageFetcher(5*time.Second, "Slopscope/1.0")
	doc, err := fetcher.Fetch(context.Background(), server.URL+"/r/test/comments/abc/thread/")
	require.NoError(t, err)

	assert.Equal(t, 3, doc.Find(".comment").Length())
	require.NotNil(t, doc.Url)
	assert.Equal(t, "/r/test/comments/abc/thread/", doc.Url.Path)
}

func TestPageFetcher_FetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	fetcher := NewPageFetcher(5*time.Second, "Slopscope/1.0")

	t.Run("bad status", func(t *testing.T) {
		_, err := fetcher.Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := fetcher.Fetch(context.Background(), "not-a-url")
		require.Error(t, err)
	})

	t.Run("unreachable host", func(t *testing.T) {
		_, err := fetcher.Fetch(context.Background(), "http://127.0.0.1:1")
		require.Error(t, err)
	})
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		hostname string
		want     string
	}{
		{"old.reddit.com", "oldReddit"},
		{"sh.reddit.com", "newReddit"},
		{"www.reddit.com", "newReddit"},
		{"reddit.com", "newReddit"},
		{"example.com", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDialect(tt.hostname).Name)
		})
	}
}
