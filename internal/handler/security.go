package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/xenking/tillpoint/internal/domain/auth"
	"github.com/xenking/tillpoint/pkg/httpmiddleware"
)

const apiKeyHeader = "X-API-Key"

type operatorKey struct{}

// OperatorFromContext returns the authenticated operator key stored by
// KeyAuth.
func OperatorFromContext(ctx context.Context) (*auth.OperatorKey, bool) {
	key, ok := ctx.Value(operatorKey{}).(*auth.OperatorKey)
	return key, ok
}

// KeyAuth returns a middleware authenticating till requests via the
// X-API-Key header. The key is HMAC-SHA256 hashed with the pepper, looked up
// in the repository, and compared in constant time to guard against timing
// side-channels even when the lookup already matched. The resulting operator
// identity is stored in the request context.
func KeyAuth(apikeys auth.Repository, pepper []byte) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(apiKeyHeader)
			if provided == "" {
				writeError(w, r, http.StatusUnauthorized, "missing api key", "")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(provided))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "")
				return
			}

			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "")
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
