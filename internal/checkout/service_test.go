package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/inventory"
	"github.com/angelmondragon/storefront-cart/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
)

const testSession = "sess-1"

type slotsOpener struct {
	slots cart.Slots
}

func (o slotsOpener) Open(ctx context.Context, session string) (*cart.Store, error) {
	return cart.Open(ctx, o.slots, session)
}

type stubCatalog struct {
	records []inventory.Record
	err     error
	calls   int
}

func (s *stubCatalog) ListAll(context.Context) ([]inventory.Record, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type stubSubmitter struct {
	invoiceID int64
	err       error
	calls     int
	last      Submission
}

func (s *stubSubmitter) Submit(_ context.Context, submission Submission) (int64, error) {
	s.calls++
	s.last = submission
	if s.err != nil {
		return 0, s.err
	}
	return s.invoiceID, nil
}

type memGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemGuard() *memGuard {
	return &memGuard{held: map[string]bool{}}
}

func (g *memGuard) Lock(session string) Lock {
	return &memLock{guard: g, session: session}
}

type memLock struct {
	guard   *memGuard
	session string
	owned   bool
}

func (l *memLock) Acquire(context.Context) (bool, error) {
	l.guard.mu.Lock()
	defer l.guard.mu.Unlock()
	if l.guard.held[l.session] {
		return false, nil
	}
	l.guard.held[l.session] = true
	l.owned = true
	return true, nil
}

func (l *memLock) Release(context.Context) error {
	l.guard.mu.Lock()
	defer l.guard.mu.Unlock()
	if l.owned {
		delete(l.guard.held, l.session)
		l.owned = false
	}
	return nil
}

type stubRecorder struct {
	outcomes   []string
	unresolved int
	inFlight   int
}

func (r *stubRecorder) ObserveOutcome(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}
func (r *stubRecorder) AddUnresolved(n int)   { r.unresolved += n }
func (r *stubRecorder) IncInFlightRejection() { r.inFlight++ }

type fixture struct {
	slots     *cart.MemorySlots
	catalog   *stubCatalog
	submitter *stubSubmitter
	guard     *memGuard
	metrics   *stubRecorder
	svc       *Service
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		slots:     cart.NewMemorySlots(),
		catalog:   &stubCatalog{records: []inventory.Record{record(7, "1", "Leche", 12)}},
		submitter: &stubSubmitter{invoiceID: 1001},
		guard:     newMemGuard(),
		metrics:   &stubRecorder{},
	}
	clock := func() time.Time { return time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC) }
	svc, err := NewService(slotsOpener{f.slots}, f.catalog, f.submitter, f.guard, cfg, nil, WithClock(clock), WithMetrics(f.metrics))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seed(t *testing.T, products ...cart.Product) *cart.Store {
	t.Helper()
	store, err := cart.Open(context.Background(), f.slots, testSession)
	if err != nil {
		t.Fatalf("open cart: %v", err)
	}
	for _, p := range products {
		if err := store.Add(context.Background(), p, 2); err != nil {
			t.Fatalf("seed %s: %v", p.ProductID, err)
		}
	}
	return store
}

func (f *fixture) lines(t *testing.T) []cart.Line {
	t.Helper()
	store, err := cart.Open(context.Background(), f.slots, testSession)
	if err != nil {
		t.Fatalf("reopen cart: %v", err)
	}
	return store.Lines()
}

func cartProduct(id, name string, price int64) cart.Product {
	return cart.Product{ProductID: id, Name: name, UnitPrice: decimal.NewFromInt(price), Stock: 50}
}

func signedIn() Request {
	return Request{
		Session:       testSession,
		UserID:        "user-1",
		DestinationID: "addr-9",
		Payment:       Payment{Method: enums.PaymentMethodCash},
	}
}

func TestCheckoutSubmitsAndClearsCart(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, cartProduct("legacy-leche", "Leche", 10))

	receipt, err := f.svc.Checkout(context.Background(), signedIn())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	sub := f.submitter.last
	if f.submitter.calls != 1 {
		t.Fatalf("expected exactly one submission, got %d", f.submitter.calls)
	}
	if sub.Type != enums.SaleTypeSale || sub.Date != "2026-10-16" || sub.DestinationID != "addr-9" || sub.UserID != "user-1" {
		t.Fatalf("unexpected submission header %+v", sub)
	}
	if len(sub.Lines) != 1 || sub.Lines[0].InventoryID != 7 || sub.Lines[0].Quantity != 2 || !sub.Lines[0].UnitPrice.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected submission lines %+v", sub.Lines)
	}
	if f.catalog.calls != 1 {
		t.Fatalf("expected one bulk catalog read, got %d", f.catalog.calls)
	}

	if receipt.InvoiceID != 1001 || receipt.TotalItems != 2 || !receipt.Subtotal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(f.lines(t)) != 0 {
		t.Fatalf("cart should be cleared after a successful submission")
	}
	if f.guard.held[testSession] {
		t.Fatalf("guard should be released")
	}
	if got := f.metrics.outcomes; len(got) != 1 || got[0] != "submitted" {
		t.Fatalf("unexpected outcomes %v", got)
	}
}

func TestCheckoutUnauthenticatedHandsOffToGuest(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, cartProduct("1", "Leche", 10))
	before := f.lines(t)

	req := signedIn()
	req.UserID = ""
	_, err := f.svc.Checkout(context.Background(), req)

	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized code, got %s", typed.Code())
	}
	if details, _ := typed.Details().(map[string]any); details["guest_cart_saved"] != true {
		t.Fatalf("expected guest_cart_saved detail, got %#v", typed.Details())
	}
	if _, ok, _ := f.slots.Read(context.Background(), testSession, cart.SlotGuest); !ok {
		t.Fatalf("guest slot should be written")
	}
	if got := f.lines(t); len(got) != len(before) {
		t.Fatalf("handoff must not change the cart")
	}
	if f.submitter.calls != 0 || f.catalog.calls != 0 {
		t.Fatalf("nothing should be read or submitted for guests")
	}
}

func TestCheckoutRejectsBeforeTouchingInventory(t *testing.T) {
	cases := []struct {
		name   string
		seed   bool
		mutate func(*Request)
	}{
		{"missing destination", true, func(r *Request) { r.DestinationID = " " }},
		{"invalid payment", true, func(r *Request) { r.Payment = Payment{Method: "cheque"} }},
		{"empty cart", false, func(*Request) {}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			if tc.seed {
				f.seed(t, cartProduct("1", "Leche", 10))
			}
			req := signedIn()
			tc.mutate(&req)

			_, err := f.svc.Checkout(context.Background(), req)
			if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if f.catalog.calls != 0 || f.submitter.calls != 0 {
				t.Fatalf("expected no catalog read or submission")
			}
		})
	}
}

func TestCheckoutInFlightRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, cartProduct("1", "Leche", 10))
	f.guard.held[testSession] = true

	_, err := f.svc.Checkout(context.Background(), signedIn())
	if !errors.Is(err, ErrCheckoutInFlight) || pkgerrors.CodeOf(err) != pkgerrors.CodeConflict {
		t.Fatalf("expected in-flight conflict, got %v", err)
	}
	if f.metrics.inFlight != 1 {
		t.Fatalf("expected in-flight rejection counted")
	}
	if f.submitter.calls != 0 {
		t.Fatalf("must not submit while another checkout runs")
	}
	if !f.guard.held[testSession] {
		t.Fatalf("the other checkout's guard must not be released")
	}
}

func TestCheckoutCatalogFailureKeepsCart(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, cartProduct("1", "Leche", 10))
	f.catalog.err = errors.New("connection reset")

	_, err := f.svc.Checkout(context.Background(), signedIn())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(f.lines(t)) != 1 || f.submitter.calls != 0 {
		t.Fatalf("cart must be kept and nothing submitted")
	}
}

func TestCheckoutNoResolvableLines(t *testing.T) {
	f := newFixture(t, Config{})
	f.catalog.records = nil
	f.seed(t, cartProduct("legacy", "Fantasma", 10))

	_, err := f.svc.Checkout(context.Background(), signedIn())
	if !errors.Is(err, ErrNoResolvableLines) {
		t.Fatalf("expected ErrNoResolvableLines, got %v", err)
	}
	if f.submitter.calls != 0 {
		t.Fatalf("no submission expected")
	}
	if len(f.lines(t)) != 1 {
		t.Fatalf("cart must be kept")
	}
}

func TestCheckoutPartialResolution(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, cartProduct("legacy-a", "Leche", 10), cartProduct("legacy-b", "Desconocido", 4))

	receipt, err := f.svc.Checkout(context.Background(), signedIn())
	if err != nil {
		t.Fatalf("partial checkout should succeed: %v", err)
	}
	if len(f.submitter.last.Lines) != 1 || f.submitter.last.Lines[0].InventoryID != 7 {
		t.Fatalf("expected only Leche submitted, got %+v", f.submitter.last.Lines)
	}
	if len(receipt.Unresolved) != 1 || receipt.Unresolved[0].Name != "Desconocido" {
		t.Fatalf("expected Desconocido reported as unresolved, got %+v", receipt.Unresolved)
	}
	if f.metrics.unresolved != 1 {
		t.Fatalf("expected one unresolved line counted, got %d", f.metrics.unresolved)
	}
}

func TestCheckoutRejectPartial(t *testing.T) {
	f := newFixture(t, Config{RejectPartial: true})
	f.seed(t, cartProduct("legacy-a", "Leche", 10), cartProduct("legacy-b", "Desconocido", 4))

	_, err := f.svc.Checkout(context.Background(), signedIn())
	if !errors.Is(err, ErrPartialResolution) || pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected partial resolution conflict, got %v", err)
	}
	if f.submitter.calls != 0 || len(f.lines(t)) != 2 {
		t.Fatalf("nothing should be submitted or cleared")
	}
}

func TestCheckoutSubmissionFailureLeavesCartIdentical(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, cartProduct("legacy-a", "Leche", 10), cartProduct("legacy-b", "Desconocido", 4))
	before := f.lines(t)
	f.submitter.err = errors.New("502 bad gateway")

	_, err := f.svc.Checkout(context.Background(), signedIn())
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed.Code() != pkgerrors.CodeDependency || !typed.Retryable() {
		t.Fatalf("expected retryable dependency error, got %v", err)
	}

	after := f.lines(t)
	if len(after) != len(before) {
		t.Fatalf("cart changed: before %+v after %+v", before, after)
	}
	for i := range before {
		if before[i].ProductID != after[i].ProductID || before[i].Quantity != after[i].Quantity || !before[i].UnitPrice.Equal(after[i].UnitPrice) {
			t.Fatalf("line %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}

	f.submitter.err = nil
	if _, err := f.svc.Checkout(context.Background(), signedIn()); err != nil {
		t.Fatalf("retry should succeed once submission recovers: %v", err)
	}
	if len(f.lines(t)) != 0 {
		t.Fatalf("cart should be cleared after the successful retry")
	}
}

func TestCheckoutSubmissionRejectionKeepsCode(t *testing.T) {
	f := newFixture(t, Config{})
	f.seed(t, cartProduct("legacy-a", "Leche", 10))
	f.submitter.err = pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
		WithDetails(map[string]any{"inventory_id": int64(7)})

	_, err := f.svc.Checkout(context.Background(), signedIn())
	if !errors.Is(err, ErrSubmissionFailed) || pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict submission failure, got %v", err)
	}
	if details, _ := pkgerrors.As(err).Details().(map[string]any); details["inventory_id"] != int64(7) {
		t.Fatalf("expected submitter details to be kept, got %#v", pkgerrors.As(err).Details())
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	opener := slotsOpener{cart.NewMemorySlots()}
	if _, err := NewService(nil, &stubCatalog{}, &stubSubmitter{}, newMemGuard(), Config{}, nil); err == nil {
		t.Fatalf("expected error without cart opener")
	}
	if _, err := NewService(opener, nil, &stubSubmitter{}, newMemGuard(), Config{}, nil); err == nil {
		t.Fatalf("expected error without catalog")
	}
	if _, err := NewService(opener, &stubCatalog{}, nil, newMemGuard(), Config{}, nil); err == nil {
		t.Fatalf("expected error without submitter")
	}
	if _, err := NewService(opener, &stubCatalog{}, &stubSubmitter{}, nil, Config{}, nil); err == nil {
		t.Fatalf("expected error without guard")
	}
}

// ctxSlots fails storage calls once their context is done, like a network client.
type ctxSlots struct {
	*cart.MemorySlots
}

func (c ctxSlots) Write(ctx context.Context, session string, slot cart.Slot, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.MemorySlots.Write(ctx, session, slot, payload)
}

func (c ctxSlots) Erase(ctx context.Context, session string, slots ...cart.Slot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.MemorySlots.Erase(ctx, session, slots...)
}

type funcSubmitter func(ctx context.Context, submission Submission) (int64, error)

func (f funcSubmitter) Submit(ctx context.Context, submission Submission) (int64, error) {
	return f(ctx, submission)
}

func newServiceWith(t *testing.T, slots cart.Slots, submitter Submitter) *Service {
	t.Helper()
	catalog := &stubCatalog{records: []inventory.Record{record(7, "1", "Leche", 12)}}
	svc, err := NewService(slotsOpener{slots}, catalog, submitter, newMemGuard(), Config{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCheckoutClearsCartWhenClientGoesAway(t *testing.T) {
	slots := ctxSlots{cart.NewMemorySlots()}
	seeded, err := cart.Open(context.Background(), slots, testSession)
	if err != nil {
		t.Fatalf("open cart: %v", err)
	}
	if err := seeded.Add(context.Background(), cartProduct("legacy-leche", "Leche", 10), 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newServiceWith(t, slots, funcSubmitter(func(context.Context, Submission) (int64, error) {
		cancel()
		return 42, nil
	}))

	receipt, err := svc.Checkout(ctx, signedIn())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if receipt.InvoiceID != 42 {
		t.Fatalf("unexpected invoice %d", receipt.InvoiceID)
	}
	reopened, err := cart.Open(context.Background(), slots, testSession)
	if err != nil {
		t.Fatalf("reopen cart: %v", err)
	}
	if !reopened.IsEmpty() {
		t.Fatalf("cart should be empty after a committed sale, got %+v", reopened.Lines())
	}
}

func TestCheckoutKeepsLinesAddedWhileSubmitting(t *testing.T) {
	slots := cart.NewMemorySlots()
	seeded, err := cart.Open(context.Background(), slots, testSession)
	if err != nil {
		t.Fatalf("open cart: %v", err)
	}
	if err := seeded.Add(context.Background(), cartProduct("legacy-leche", "Leche", 10), 2); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := newServiceWith(t, slots, funcSubmitter(func(ctx context.Context, _ Submission) (int64, error) {
		other, err := cart.Open(ctx, slots, testSession)
		if err != nil {
			return 0, err
		}
		if err := other.Add(ctx, cartProduct("pan", "Pan", 3), 1); err != nil {
			return 0, err
		}
		return 7, nil
	}))

	if _, err := svc.Checkout(context.Background(), signedIn()); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	reopened, err := cart.Open(context.Background(), slots, testSession)
	if err != nil {
		t.Fatalf("reopen cart: %v", err)
	}
	lines := reopened.Lines()
	if len(lines) != 1 || lines[0].ProductID != "pan" || lines[0].Quantity != 1 {
		t.Fatalf("expected only the line added mid-checkout to remain, got %+v", lines)
	}
}
