// Package device labels the calling client ("Firefox on Linux") from its
// User-Agent. The label is stored on ledger events for audit.
package device

import (
	"fmt"
	"net/http"

	"github.com/mssola/useragent"

	"zimmet/pkg/requestcontext"
)

// Label derives a short human readable device label. Unknown agents yield "".
func Label(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return fmt.Sprintf("%s on %s", browser, os)
	case browser != "":
		return browser
	default:
		return os
	}
}

// Middleware parses the User-Agent once per request and stores the label.
// Must run after metadata.ClientMetadata.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if label := Label(requestcontext.UserAgent(ctx)); label != "" {
			ctx = requestcontext.WithDevice(ctx, label)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
