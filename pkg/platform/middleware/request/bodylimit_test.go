package request

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func readAllHandler(t *testing.T, gotErr *error, gotLen *int) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		*gotErr = err
		*gotLen = len(data)
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimit(t *testing.T) {
	t.Run("json body at the limit passes through", func(t *testing.T) {
		var err error
		var n int
		handler := BodyLimit(100, 1000)(readAllHandler(t, &err, &n))

		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 100)))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.NoError(t, err)
		assert.Equal(t, 100, n)
	})

	t.Run("json body over the limit fails to read", func(t *testing.T) {
		var err error
		var n int
		handler := BodyLimit(100, 1000)(readAllHandler(t, &err, &n))

		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 101)))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		var maxErr *http.MaxBytesError
		assert.ErrorAs(t, err, &maxErr)
	})

	t.Run("multipart body uses the upload limit", func(t *testing.T) {
		var err error
		var n int
		handler := BodyLimit(100, 1000)(readAllHandler(t, &err, &n))

		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 500)))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=abc")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.NoError(t, err)
		assert.Equal(t, 500, n)
	})
}
