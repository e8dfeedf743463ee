package callback_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"codestash/auth/callback"
	"codestash/internal/apperrors"

	"github.com/stretchr/testify/require"
)

type exchangeRecorder struct {
	calls  int
	tokens []string
	err    error
}

func (e *exchangeRecorder) exchange(_ context.Context, accessToken string) error {
	e.calls++
	e.tokens = append(e.tokens, accessToken)
	return e.err
}

func startServer(t *testing.T, state string, rec *exchangeRecorder) (*callback.Server, int) {
	t.Helper()
	srv := callback.New(state, rec.exchange)
	port, err := srv.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv, port
}

func get(t *testing.T, rawURL string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func tokensURL(port int, accessToken, state string) string {
	v := url.Values{}
	if accessToken != "" {
		v.Set("access_token", accessToken)
	}
	if state != "" {
		v.Set("state", state)
	}
	return fmt.Sprintf("http://localhost:%d%s?%s", port, callback.RouteTokens, v.Encode())
}

func TestServer_Landing(t *testing.T) {
	rec := &exchangeRecorder{}
	srv, port := startServer(t, "S", rec)

	resp, body := get(t, fmt.Sprintf("http://localhost:%d%s", port, callback.RouteCallback))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, body, callback.RouteTokens)
	require.Contains(t, body, "window.location.hash")
	require.Equal(t, fmt.Sprintf("http://localhost:%d%s", port, callback.RouteCallback), srv.RedirectURI())
}

func TestServer_Tokens(t *testing.T) {
	t.Run("mismatched state returns 400 and skips exchange", func(t *testing.T) {
		rec := &exchangeRecorder{}
		srv, port := startServer(t, "S", rec)

		resp, body := get(t, tokensURL(port, "TOK", "WRONG"))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Contains(t, body, "Invalid state parameter")
		require.Zero(t, rec.calls)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.ErrorIs(t, srv.Wait(ctx), apperrors.ErrInvalidState)
	})

	t.Run("missing token returns 400 and skips exchange", func(t *testing.T) {
		rec := &exchangeRecorder{}
		srv, port := startServer(t, "S", rec)

		resp, body := get(t, tokensURL(port, "", "S"))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Contains(t, body, "No access token provided")
		require.Zero(t, rec.calls)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.ErrorIs(t, srv.Wait(ctx), apperrors.ErrValidation)
	})

	t.Run("valid delivery runs exchange once", func(t *testing.T) {
		rec := &exchangeRecorder{}
		srv, port := startServer(t, "S", rec)

		resp, body := get(t, tokensURL(port, "TOK", "S"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "Authentication successful", body)
		require.Equal(t, []string{"TOK"}, rec.tokens)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, srv.Wait(ctx))
	})

	t.Run("double fire is rejected with 409", func(t *testing.T) {
		rec := &exchangeRecorder{}
		_, port := startServer(t, "S", rec)

		resp, _ := get(t, tokensURL(port, "TOK", "S"))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = get(t, tokensURL(port, "TOK", "S"))
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, 1, rec.calls, "exchange must not re-run on a redelivered callback")
	})

	t.Run("exchange failure returns 400 with the cause", func(t *testing.T) {
		rec := &exchangeRecorder{err: apperrors.ErrExchangeFailed}
		srv, port := startServer(t, "S", rec)

		resp, body := get(t, tokensURL(port, "TOK", "S"))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Contains(t, body, "Authentication failed")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.ErrorIs(t, srv.Wait(ctx), apperrors.ErrExchangeFailed)
	})
}

func TestServer_ContextCancelClosesServer(t *testing.T) {
	rec := &exchangeRecorder{}
	srv := callback.New("S", rec.exchange)
	ctx, cancel := context.WithCancel(context.Background())
	port, err := srv.Start(ctx)
	require.NoError(t, err)

	cancel()

	require.Eventually(t, func() bool {
		_, err := http.Get(fmt.Sprintf("http://localhost:%d%s", port, callback.RouteCallback))
		return err != nil
	}, 2*time.Second, 50*time.Millisecond, "port must be released after cancellation")
}

func TestServer_WaitTimeout(t *testing.T) {
	rec := &exchangeRecorder{}
	srv, _ := startServer(t, "S", rec)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, srv.Wait(ctx), apperrors.ErrCallbackTimeout)
}
