package ipfs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonzip/launchd/internal/apperrors"
)

func TestUpload_PostsMultipartAndResolvesGatewayURL(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"IpfsHash":"QmTestHash"}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "test-key", Gateway: "moonzip"})
	uri, err := client.Upload(context.Background(), []byte("hello"), "image/png", "logo")
	require.NoError(t, err)

	assert.Equal(t, "https://moonzip.mypinata.cloud/ipfs/QmTestHash", uri)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Contains(t, gotContentType, "multipart/form-data")
	assert.Contains(t, string(gotBody), "hello")
	assert.Contains(t, string(gotBody), `"name":"logo"`)
}

func TestUpload_NonOKStatusReturnsTransientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "test-key"})
	_, err := client.Upload(context.Background(), []byte("x"), "image/png", "name")
	assert.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindTransient, appErr.Kind)
}

func TestUpload_DefaultGatewayWhenUnconfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"IpfsHash":"QmAbc"}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "k"})
	uri, err := client.Upload(context.Background(), []byte("x"), "application/json", "meta")
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/QmAbc", uri)
}
