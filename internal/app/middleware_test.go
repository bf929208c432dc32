package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusride/nexusride-web/internal/shared"
)

func TestSessionMiddlewareSkipsCommitAfterCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	manager := shared.NewSessionManager(client, SessionCookie, time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	signIn := func(cancel context.CancelFunc) http.Handler {
		return SessionMiddleware(manager, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shared.SessionFromContext(r.Context()).SetIdentity(shared.Identity{Email: "rider@iut-dhaka.edu", Credential: "token-1"})
			if cancel != nil {
				cancel()
			}
			w.WriteHeader(http.StatusNoContent)
		}))
	}

	t.Run("abandoned request", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rec := httptest.NewRecorder()
		signIn(cancel).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil).WithContext(ctx))

		assert.Empty(t, rec.Result().Cookies())
		assert.Empty(t, mr.Keys())
	})

	t.Run("completed request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		signIn(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

		require.Len(t, rec.Result().Cookies(), 1)
		assert.Equal(t, SessionCookie, rec.Result().Cookies()[0].Name)
		assert.Len(t, mr.Keys(), 1)
	})
}
