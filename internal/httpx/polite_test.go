package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{UserAgent: "test-agent", Timeout: 5 * time.Second, Every: time.Millisecond, Burst: 10}
}

func TestPoliteClient_FetchBytesOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"values": {}}`))
	}))
	defer srv.Close()

	body, status, err := NewPoliteClient(fastOptions()).FetchBytes(context.Background(), srv.URL+"/api")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"values": {}}`, string(body))
}

func TestPoliteClient_NonSuccessIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, status, err := NewPoliteClient(fastOptions()).FetchBytes(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)
}

func TestPoliteClient_RetriesOnServiceUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	body, _, err := NewPoliteClient(fastOptions()).FetchBytes(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPoliteClient_RobotsDisallow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.RespectRobots = true
	client := NewPoliteClient(opts)

	_, _, err := client.FetchBytes(context.Background(), srv.URL+"/private/data")
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusForbidden, fe.Status)

	_, _, err = client.FetchBytes(context.Background(), srv.URL+"/public/data")
	assert.NoError(t, err)
}

func TestNewTransport(t *testing.T) {
	f, err := New("colly", Options{})
	require.NoError(t, err)
	assert.IsType(t, &CollyFetcher{}, f)

	f, err = New("", Options{})
	require.NoError(t, err)
	assert.IsType(t, &PoliteClient{}, f)

	_, err = New("carrier-pigeon", Options{})
	assert.Error(t, err)
}
