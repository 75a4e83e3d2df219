package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	"github.com/angelmondragon/storefront-cart/internal/checkout"
	"github.com/angelmondragon/storefront-cart/pkg/enums"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Receipt, error)
}

type checkoutRequest struct {
	Payment paymentRequest `json:"payment"`
}

// Card fields are checked by the checkout itself so every payment problem
// is reported in one response.
type paymentRequest struct {
	Method string       `json:"method"`
	Card   *cardRequest `json:"card,omitempty"`
}

type cardRequest struct {
	Number string `json:"number"`
	Holder string `json:"holder"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

func (p paymentRequest) toPayment() checkout.Payment {
	method, err := enums.ParsePaymentMethod(p.Method)
	if err != nil {
		method = enums.PaymentMethod(p.Method)
	}
	payment := checkout.Payment{Method: method}
	if p.Card != nil {
		payment.Card = &checkout.Card{
			Number: p.Card.Number,
			Holder: p.Card.Holder,
			Expiry: p.Card.Expiry,
			CVV:    p.Card.CVV,
		}
	}
	return payment
}

// Checkout submits the session's cart. Guests get a 401 after their cart is
// stashed in the guest slot; payment problems come back field by field.
func Checkout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		receipt, err := svc.Checkout(ctx, checkout.Request{
			Session:       middleware.CartSessionFromContext(ctx),
			UserID:        middleware.UserIDFromContext(ctx),
			DestinationID: middleware.DestinationIDFromContext(ctx),
			Payment:       payload.Payment.toPayment(),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}
