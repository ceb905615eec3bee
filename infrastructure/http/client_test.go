package http_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infrahttp "github.com/Meltveit/qrydex/infrastructure/http"
)

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, infrahttp.DefaultTimeout, infrahttp.NewClient(nil).Timeout)
	assert.Zero(t, infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: -1}).Timeout)
	assert.Equal(t, 5*time.Second, infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: 5 * time.Second}).Timeout)
}

func TestNewClient_CapsRedirects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer srv.Close()

	client := infrahttp.NewClient(&infrahttp.ClientConfig{MaxRedirects: 2})
	resp, err := client.Get(srv.URL)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, infrahttp.ErrTooManyRedirects))
}
