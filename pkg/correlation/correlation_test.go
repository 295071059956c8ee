package correlation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/correlation"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		header   string
		keepSame bool
	}{
		{name: "generates id when missing"},
		{name: "keeps valid id", header: "corr-123_abc", keepSame: true},
		{name: "replaces unsafe id", header: "bad id\r\n"},
		{name: "replaces oversized id", header: strings.Repeat("a", 129)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			h := correlation.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = correlation.FromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(correlation.Header, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(correlation.Header))
			if tt.keepSame {
				assert.Equal(t, tt.header, seen)
			} else {
				assert.NotEqual(t, tt.header, seen)
				assert.True(t, correlation.Valid(seen))
			}
		})
	}
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	ex := correlation.LoggerExtractor()
	_, ok := ex(context.Background())
	assert.False(t, ok)

	attr, ok := ex(correlation.WithContext(context.Background(), "c1"))
	require.True(t, ok)
	assert.Equal(t, "correlation_id", attr.Key)
	assert.Equal(t, "c1", attr.Value.String())
}
