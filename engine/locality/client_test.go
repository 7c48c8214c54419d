package locality_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/credportal/credportal/engine/locality"
	"github.com/credportal/credportal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	_, _ = w.Write([]byte(body))
}

func newClient(t *testing.T, mux *http.ServeMux) *locality.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return locality.NewClient(&config.LocalityConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, RetryCount: 1})
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	t.Run("Should decode states", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /estados", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, `[{"id":17,"sigla":"TO","nome":"Tocantins","regiao":{"id":1,"sigla":"N","nome":"Norte"}}]`)
		})
		states, err := newClient(t, mux).States(ctx)
		require.NoError(t, err)
		assert.Equal(t, []locality.State{{ID: 17, Acronym: "TO", Name: "Tocantins"}}, states)
	})
	t.Run("Should request municipalities of the given state", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /estados/{uf}/municipios", func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("uf") != "TO" {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, `[{"id":1700251,"nome":"Abreulândia","microrregiao":{"id":17003}},{"id":1721000,"nome":"Palmas"}]`)
		})
		list, err := newClient(t, mux).Municipalities(ctx, "TO")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, locality.Municipality{ID: 1721000, Name: "Palmas"}, list[1])
	})
	t.Run("Should retry server errors and then report an upstream failure", func(t *testing.T) {
		var hits atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("GET /estados", func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := newClient(t, mux).States(ctx)
		assert.ErrorIs(t, err, locality.ErrUpstream)
		assert.ErrorContains(t, err, "status 502")
		assert.Equal(t, int32(2), hits.Load())
	})
	t.Run("Should not retry client errors", func(t *testing.T) {
		var hits atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("GET /estados/{uf}/municipios", func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		})
		_, err := newClient(t, mux).Municipalities(ctx, "XX")
		assert.ErrorIs(t, err, locality.ErrUpstream)
		assert.Equal(t, int32(1), hits.Load())
	})
}
