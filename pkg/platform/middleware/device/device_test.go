package device

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"zimmet/pkg/requestcontext"
)

const firefoxLinux = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"

func TestLabel(t *testing.T) {
	assert.Equal(t, "", Label(""))
	assert.Contains(t, Label(firefoxLinux), "Firefox")
	assert.Contains(t, Label(firefoxLinux), "Linux")
}

func TestMiddlewareStoresLabel(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = requestcontext.Device(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "10.0.0.1", firefoxLinux))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Contains(t, got, "Firefox")
}
