package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-cart/internal/checkout"
	"github.com/angelmondragon/storefront-cart/internal/repo"
	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/db/models"
	"github.com/angelmondragon/storefront-cart/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/outbox"
	"github.com/angelmondragon/storefront-cart/pkg/outbox/payloads"
)

const saleLineConstraint = "ux_sale_lines_sale_inventory"

// ErrInsufficientStock means an inventory row no longer holds the quantity
// being sold. The whole sale is rolled back.
var ErrInsufficientStock = errors.New("insufficient stock")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Repository records sales. It is the checkout's Submitter.
type Repository struct {
	repo.Base
	tx     txRunner
	outbox outboxEmitter
	logg   *logger.Logger
}

var _ checkout.Submitter = (*Repository)(nil)

func NewRepository(conn *gorm.DB, tx txRunner, emitter outboxEmitter, logg *logger.Logger) (*Repository, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Repository{Base: repo.NewBase(conn), tx: tx, outbox: emitter, logg: logg}, nil
}

// Submit decrements stock, writes the sale with its lines and queues the
// sale_submitted event in one transaction. The sale id is the invoice id.
func (r *Repository) Submit(ctx context.Context, sub checkout.Submission) (int64, error) {
	if err := validateSubmission(sub); err != nil {
		return 0, err
	}

	var invoiceID int64
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, line := range sub.Lines {
			if err := decrementStock(tx, line); err != nil {
				return err
			}
		}

		sale := models.Sale{
			Type:          sub.Type,
			SaleDate:      sub.Date,
			DestinationID: sub.DestinationID,
			UserID:        sub.UserID,
			PaymentMethod: sub.PaymentMethod,
			Subtotal:      sub.Subtotal(),
			Lines:         make([]models.SaleLine, 0, len(sub.Lines)),
		}
		for _, line := range sub.Lines {
			sale.Lines = append(sale.Lines, models.SaleLine{
				InventoryID: line.InventoryID,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
			})
		}
		if err := tx.Create(&sale).Error; err != nil {
			if db.IsUniqueViolation(err, saleLineConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "inventory row listed twice in one sale")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale")
		}
		invoiceID = sale.ID

		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleSubmitted,
			AggregateType: enums.AggregateSale,
			AggregateID:   strconv.FormatInt(sale.ID, 10),
			Actor:         &outbox.ActorRef{UserID: sub.UserID},
			Data:          saleEvent(sale),
		})
	})
	if err != nil {
		return 0, err
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"invoice_id": invoiceID,
		"lines":      len(sub.Lines),
	}), "sale recorded")
	return invoiceID, nil
}

func decrementStock(tx *gorm.DB, line checkout.OrderLine) error {
	res := tx.Model(&models.InventoryItem{}).
		Where("id = ? AND status = ? AND quantity >= ?", line.InventoryID, models.InventoryStatusActive, line.Quantity).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", line.Quantity),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrInsufficientStock, "not enough stock to complete the sale").
			WithDetails(map[string]any{
				"inventory_id": line.InventoryID,
				"requested":    line.Quantity,
			})
	}
	return nil
}

func validateSubmission(sub checkout.Submission) error {
	details := map[string]string{}
	if sub.Type != enums.SaleTypeSale {
		details["type"] = "must be " + enums.SaleTypeSale.String()
	}
	if _, err := time.Parse("2006-01-02", sub.Date); err != nil {
		details["date"] = "must be YYYY-MM-DD"
	}
	if strings.TrimSpace(sub.DestinationID) == "" {
		details["destination_id"] = "is required"
	}
	if strings.TrimSpace(sub.UserID) == "" {
		details["user_id"] = "is required"
	}
	if !sub.PaymentMethod.IsValid() {
		details["payment_method"] = "must be cash or card"
	}
	if len(sub.Lines) == 0 {
		details["lines"] = "must not be empty"
	}
	seen := map[int64]struct{}{}
	for i, line := range sub.Lines {
		key := fmt.Sprintf("lines[%d]", i)
		switch {
		case line.Quantity <= 0:
			details[key] = "quantity must be positive"
		case line.UnitPrice.IsNegative():
			details[key] = "unit price must not be negative"
		}
		if _, dup := seen[line.InventoryID]; dup {
			details[key] = "duplicate inventory id"
		}
		seen[line.InventoryID] = struct{}{}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid submission").WithDetails(details)
	}
	return nil
}

func saleEvent(sale models.Sale) payloads.SaleSubmittedEvent {
	event := payloads.SaleSubmittedEvent{
		InvoiceID:     sale.ID,
		SaleDate:      sale.SaleDate,
		DestinationID: sale.DestinationID,
		PaymentMethod: sale.PaymentMethod.String(),
		Subtotal:      sale.Subtotal,
		Lines:         make([]payloads.SaleLine, 0, len(sale.Lines)),
	}
	for _, line := range sale.Lines {
		event.Lines = append(event.Lines, payloads.SaleLine{
			InventoryID: line.InventoryID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	return event
}

// FindSale loads a sale of userID with its lines.
func (r *Repository) FindSale(ctx context.Context, invoiceID int64, userID string) (*models.Sale, error) {
	var sale models.Sale
	err := r.DB(ctx).
		Preload("Lines", func(q *gorm.DB) *gorm.DB { return q.Order("id ASC") }).
		Where("id = ? AND user_id = ?", invoiceID, userID).
		Take(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find sale")
	}
	return &sale, nil
}
