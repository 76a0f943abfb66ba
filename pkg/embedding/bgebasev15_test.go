package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBgeBaseV15GetEmbeddings(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody embedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([][]float32{{0.1, 0.2}, {0.3, 0.4}})
	}))
	defer srv.Close()

	c := NewBgeBaseV15(srv.URL)

	vectors, err := c.GetEmbeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	require.Equal(t, "/embed", gotPath)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, []string{"first", "second"}, gotBody.Inputs)
	require.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
}

func TestBgeBaseV15ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewBgeBaseV15(srv.URL)

	_, err := c.GetEmbeddings(context.Background(), []string{"text"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "model overloaded")
}

func TestBgeBaseV15Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewBgeBaseV15(srv.URL)

	_, err := c.GetEmbeddings(context.Background(), []string{"text"})
	require.Error(t, err)
}
