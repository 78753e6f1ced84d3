// Package admin guards operator-only routes, such as the development ledger
// node, with shared tokens carried in a request header.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "frost/pkg/domain-errors"
	"frost/pkg/platform/httputil"
	request "frost/pkg/platform/middleware/request"
)

// RequireToken admits a request when header carries one of accepted. Empty
// entries never match, so a guard with no configured token rejects
// everything. More than one token lets an operator rotate without downtime.
func RequireToken(logger *slog.Logger, header string, accepted ...string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(accepted))
	for _, t := range accepted {
		if t != "" {
			keys = append(keys, []byte(t))
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !matches(keys, r.Header.Get(header)) {
				ctx := r.Context()
				logger.WarnContext(ctx, "operator token rejected",
					"path", r.URL.Path,
					"header", header,
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "operator token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matches(keys [][]byte, sent string) bool {
	if sent == "" {
		return false
	}
	found := 0
	for _, k := range keys {
		// compare against every key so timing does not reveal which matched
		found |= subtle.ConstantTimeCompare([]byte(sent), k)
	}
	return found == 1
}
