package attachment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "receipt.pdf", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "pdf-bytes", string(data))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"url": "https://cdn.example/r/abc123",
			"id":  "abc123",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", quietLog())
	url, id, err := c.Upload(context.Background(), "receipt.pdf", []byte("pdf-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/r/abc123", url)
	assert.Equal(t, "abc123", id)
}

func TestUpload_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "u", "id": "i"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", quietLog())
	_, _, err := c.Upload(context.Background(), "receipt.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUpload_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", quietLog())
	_, _, err := c.Upload(context.Background(), "receipt.pdf", nil)
	require.Error(t, err)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestUpload_ContextCancellationStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "secret", quietLog())
	_, _, err := c.Upload(ctx, "receipt.pdf", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelete(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", quietLog())
	require.NoError(t, c.Delete(context.Background(), "abc123"))
	assert.Equal(t, "/files/abc123", gotPath)
}

func TestDelete_MissingBlobIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", quietLog())
	assert.NoError(t, c.Delete(context.Background(), "gone"))
}
