package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMux(t *testing.T) {
	srv := httptest.NewServer(newMux(10*time.Millisecond, zap.NewNop()))
	defer srv.Close()

	for _, path := range []string{"/", "/delay5s"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "hello", string(body), path)
		assert.EqualValues(t, 5, resp.ContentLength, path)
	}

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHeaderEcho(t *testing.T) {
	srv := httptest.NewServer(newMux(0, zap.NewNop()))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/headerTest", nil)
	require.NoError(t, err)
	req.Header.Set("X-Unit", "7")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []string{"7"}, got["X-Unit"])
}
