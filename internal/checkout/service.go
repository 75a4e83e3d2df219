package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/inventory"
	"github.com/angelmondragon/storefront-cart/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

const dateLayout = "2006-01-02"

type cartOpener interface {
	Open(ctx context.Context, session string) (*cart.Store, error)
}

type catalogReader interface {
	ListAll(ctx context.Context) ([]inventory.Record, error)
}

// Submitter writes a submission to the sales ledger and returns the invoice id.
type Submitter interface {
	Submit(ctx context.Context, submission Submission) (int64, error)
}

type checkoutRecorder interface {
	ObserveOutcome(outcome string, duration time.Duration)
	AddUnresolved(n int)
	IncInFlightRejection()
}

// Request describes one checkout attempt. An empty UserID means the caller is
// not signed in.
type Request struct {
	Session       string
	UserID        string
	DestinationID string
	Payment       Payment
}

type Config struct {
	// RejectPartial blocks checkout when any cart line is unresolved instead
	// of submitting the lines that did resolve.
	RejectPartial  bool
	CatalogTimeout time.Duration
}

type Service struct {
	carts     cartOpener
	catalog   catalogReader
	submitter Submitter
	guard     Guard
	cfg       Config
	logg      *logger.Logger
	metrics   checkoutRecorder
	now       func() time.Time
}

type ServiceOption func(*Service)

// WithClock overrides the clock used for the sale date.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m checkoutRecorder) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func NewService(carts cartOpener, catalog catalogReader, submitter Submitter, guard Guard, cfg Config, logg *logger.Logger, opts ...ServiceOption) (*Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart opener required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("inventory catalog required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter required")
	}
	if guard == nil {
		return nil, fmt.Errorf("checkout guard required")
	}
	s := &Service{
		carts:     carts,
		catalog:   catalog,
		submitter: submitter,
		guard:     guard,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Checkout turns the cart of req.Session into a sale. The cart is cleared only
// after the submitter confirms; every failure leaves it as it was.
func (s *Service) Checkout(ctx context.Context, req Request) (*Receipt, error) {
	started := time.Now()
	outcome := "error"
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveOutcome(outcome, time.Since(started))
		}
	}()

	ctx = s.logg.WithCartSession(ctx, req.Session)
	store, err := s.carts.Open(ctx, req.Session)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.UserID) == "" {
		outcome = "unauthenticated"
		return nil, s.handoff(ctx, store)
	}
	ctx = s.logg.WithUserID(ctx, req.UserID)

	if strings.TrimSpace(req.DestinationID) == "" {
		outcome = "invalid"
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid token or no destination associated")
	}
	if err := req.Payment.Validate(); err != nil {
		outcome = "invalid"
		return nil, err
	}
	if store.IsEmpty() {
		outcome = "empty"
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	lock := s.guard.Lock(store.Session())
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout guard unavailable")
	}
	if !acquired {
		outcome = "in_flight"
		if s.metrics != nil {
			s.metrics.IncInFlightRejection()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrCheckoutInFlight, "a checkout is already running for this cart")
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.logg.Error(ctx, "failed to release checkout guard", releaseErr)
		}
	}()

	lines := store.Lines()
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		outcome = "catalog_unavailable"
		return nil, err
	}

	result := Reconcile(lines, catalog)
	s.reportUnresolved(ctx, result)
	if len(result.Resolved) == 0 {
		outcome = "no_resolvable_lines"
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrNoResolvableLines, "none of the cart products are available").
			WithDetails(map[string]any{"unresolved": result.UnresolvedProductIDs()})
	}
	if len(result.Unresolved) > 0 && s.cfg.RejectPartial {
		outcome = "partial_rejected"
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrPartialResolution, "some cart products are no longer available").
			WithDetails(map[string]any{"unresolved": result.UnresolvedProductIDs()})
	}

	now := s.now()
	submission := Submission{
		Type:          enums.SaleTypeSale,
		Date:          now.Format(dateLayout),
		DestinationID: req.DestinationID,
		UserID:        req.UserID,
		PaymentMethod: req.Payment.Method,
		Lines:         result.Resolved,
	}
	invoiceID, err := s.submitter.Submit(ctx, submission)
	if err != nil {
		outcome = "submission_failed"
		s.logg.Error(ctx, "order submission failed", err)
		return nil, submissionFailed(err)
	}

	// The sale is committed; a dropped client must not leave it in the cart.
	store.ClearCheckedOut(context.WithoutCancel(ctx), lines)
	outcome = "submitted"
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"invoice_id": invoiceID,
		"lines":      len(result.Resolved),
		"unresolved": len(result.Unresolved),
	}), "checkout submitted")

	return &Receipt{
		InvoiceID:     invoiceID,
		Date:          submission.Date,
		PaymentMethod: submission.PaymentMethod,
		Lines:         result.Resolved,
		Unresolved:    result.Unresolved,
		TotalItems:    result.TotalItems(),
		Subtotal:      submission.Subtotal(),
		SubmittedAt:   now.UTC(),
	}, nil
}

func (s *Service) handoff(ctx context.Context, store *cart.Store) error {
	saved := true
	if err := store.HandoffToGuest(ctx); err != nil {
		saved = false
		s.logg.Error(ctx, "failed to save guest cart", err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, ErrAuthenticationRequired, "sign in to complete your purchase").
		WithDetails(map[string]any{"guest_cart_saved": saved})
}

func (s *Service) loadCatalog(ctx context.Context) ([]inventory.Record, error) {
	if s.cfg.CatalogTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CatalogTimeout)
		defer cancel()
	}
	catalog, err := s.catalog.ListAll(ctx)
	if err != nil {
		s.logg.Error(ctx, "failed to load inventory", err)
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeDependency {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inventory unavailable")
	}
	return catalog, nil
}

func (s *Service) reportUnresolved(ctx context.Context, result Result) {
	if len(result.Unresolved) == 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.AddUnresolved(len(result.Unresolved))
	}
	for _, line := range result.Unresolved {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"product_id":   line.ProductID,
			"inventory_id": line.InventoryID,
			"name":         line.Name,
		}), "cart line did not match inventory")
	}
}

// submissionFailed keeps the submitter's code when it rejected the sale on
// business grounds; anything else is reported as a retryable dependency error.
func submissionFailed(err error) error {
	code := pkgerrors.CodeDependency
	var details any
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeStateConflict, pkgerrors.CodeConflict, pkgerrors.CodeValidation:
			code = typed.Code()
			details = typed.Details()
		}
	}
	wrapped := pkgerrors.Wrap(code, fmt.Errorf("%w: %w", ErrSubmissionFailed, err), "could not place the order, your cart was kept")
	if details != nil {
		wrapped = wrapped.WithDetails(details)
	}
	return wrapped
}
