package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

type SaleReader interface {
	FindSale(ctx context.Context, invoiceID int64, userID string) (*models.Sale, error)
}

type saleLineResponse struct {
	InventoryID int64           `json:"inventory_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type saleResponse struct {
	InvoiceID     int64              `json:"invoice_id"`
	Date          string             `json:"date"`
	DestinationID string             `json:"destination_id"`
	PaymentMethod string             `json:"payment_method"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	Lines         []saleLineResponse `json:"lines"`
	CreatedAt     time.Time          `json:"created_at"`
}

// SaleDetail renders the invoice of one of the caller's purchases.
func SaleDetail(reader SaleReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceId"), 10, 64)
		if err != nil || invoiceID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice id"))
			return
		}

		sale, err := reader.FindSale(r.Context(), invoiceID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSaleResponse(sale))
	}
}

func newSaleResponse(sale *models.Sale) saleResponse {
	lines := make([]saleLineResponse, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		lines = append(lines, saleLineResponse{
			InventoryID: line.InventoryID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Total:       line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}
	return saleResponse{
		InvoiceID:     sale.ID,
		Date:          sale.SaleDate,
		DestinationID: sale.DestinationID,
		PaymentMethod: sale.PaymentMethod.String(),
		Subtotal:      sale.Subtotal,
		Lines:         lines,
		CreatedAt:     sale.CreatedAt,
	}
}
