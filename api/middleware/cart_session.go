package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-cart/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// CartSessionHeader carries the opaque handle of the browser's cart.
const CartSessionHeader = "X-Cart-Session"

const maxCartSessionLen = 128

// CartSession resolves the cart session from the request header, minting a
// new one for first-time visitors. The handle is echoed on every response so
// the client can persist it.
func CartSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			if len(session) > maxCartSessionLen || strings.ContainsAny(session, ": \t") {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "malformed cart session").
					WithDetails(map[string]string{"header": CartSessionHeader}))
				return
			}
			if session == "" {
				session = uuid.NewString()
			}

			w.Header().Set(CartSessionHeader, session)

			ctx := WithCartSession(r.Context(), session)
			if logg != nil {
				ctx = logg.WithCartSession(ctx, session)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
