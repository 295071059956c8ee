package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/handler"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.Envelope {
	t.Helper()
	var got handler.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("simple data", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		err := handler.JSON(map[string]string{"id": "123"}).Render(w, r)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, handler.Envelope{
			Success: true,
			Data:    map[string]any{"id": "123"},
			Message: "Success",
		}, decode(t, w))
	})

	t.Run("with options", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", nil)

		err := handler.JSON(nil,
			handler.WithStatus(http.StatusAccepted),
			handler.WithMessage("Queued"),
			handler.WithHeader("X-Test", "1"),
		).Render(w, r)
		require.NoError(t, err)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "1", w.Header().Get("X-Test"))
		got := decode(t, w)
		assert.True(t, got.Success)
		assert.Equal(t, "Queued", got.Message)
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		err := handler.JSONError(fmt.Errorf("lookup: %w", handler.ErrNotFound)).Render(w, r)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, w.Code)
		got := decode(t, w)
		assert.False(t, got.Success)
		assert.Equal(t, "not_found", got.Error)
		assert.Equal(t, "Not Found", got.Message)
	})

	t.Run("custom key and message", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		herr := handler.NewHTTPError(http.StatusTooManyRequests, "rate_limit_exceeded")
		err := handler.JSONError(herr, handler.WithMessage("slow down")).Render(w, r)
		require.NoError(t, err)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		got := decode(t, w)
		assert.Equal(t, "rate_limit_exceeded", got.Error)
		assert.Equal(t, "slow down", got.Message)
	})

	t.Run("plain error", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		require.NoError(t, handler.JSONError(errors.New("boom")).Render(w, r))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		got := decode(t, w)
		assert.Equal(t, "internal_server_error", got.Error)
		assert.NotContains(t, w.Body.String(), "boom")
	})
}

type failingResponse struct{}

func (failingResponse) Render(http.ResponseWriter, *http.Request) error {
	return handler.ErrServiceUnavailable
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("renders response", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(r *http.Request) handler.Response {
			return handler.JSON("ok")
		})
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		var got error
		h := handler.Wrap(func(r *http.Request) handler.Response { return nil },
			handler.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) { got = err }))
		h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, got, handler.ErrNilResponse)
	})

	t.Run("render error uses default handler", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(r *http.Request) handler.Response { return failingResponse{} })
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "service_unavailable", decode(t, w).Error)
	})
}
