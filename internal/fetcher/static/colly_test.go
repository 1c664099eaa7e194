package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iiadata/treaty-crawler/internal/fetcher"
)

func TestNavigateFetchesBody(t *testing.T) {
	t.Parallel()
	var (
		mu    sync.Mutex
		gotUA string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotUA = r.UserAgent()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><body><h1>Albania</h1></body></html>`))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "treatycrawl-test"})
	page, err := f.Navigate(context.Background(), srv.URL+"/countries/3/albania", fetcher.Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	mu.Lock()
	assert.Equal(t, "treatycrawl-test", gotUA)
	mu.Unlock()

	doc, err := page.Document()
	require.NoError(t, err)
	assert.Equal(t, "Albania", doc.Find("h1").Text())
}

func TestNavigateFollowsRedirects(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/countries/3/x", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/countries/3/albania", http.StatusFound)
	})
	mux.HandleFunc("/countries/3/albania", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>ok</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{})
	page, err := f.Navigate(context.Background(), srv.URL+"/countries/3/x", fetcher.Options{})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/countries/3/x", page.URL)
	assert.Equal(t, srv.URL+"/countries/3/albania", page.FinalURL)
}

func TestNavigateServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(Config{})
	_, err := f.Navigate(context.Background(), srv.URL+"/broken", fetcher.Options{})
	assert.Error(t, err)
}

func TestNavigateRepeatVisits(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		hits int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		_, _ = w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer srv.Close()

	f := New(Config{})
	for i := 0; i < 2; i++ {
		_, err := f.Navigate(context.Background(), srv.URL+"/same", fetcher.Options{})
		require.NoError(t, err)
	}
	mu.Lock()
	assert.Equal(t, 2, hits)
	mu.Unlock()
}

func TestNavigateCancelledContext(t *testing.T) {
	t.Parallel()
	f := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Navigate(ctx, "http://127.0.0.1:1/nope", fetcher.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNavigateCancelAbandonsHungRequest(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{Timeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := f.Navigate(ctx, srv.URL+"/hang", fetcher.Options{})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Navigate did not return after cancellation")
	}
}
