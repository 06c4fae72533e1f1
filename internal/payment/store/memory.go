package store

import (
	"context"
	"sort"
	"sync"
	"time"

	id "tabhq/pkg/domain"

	"tabhq/internal/payment/models"
	"tabhq/internal/provider"
	"tabhq/internal/sentinel"
)

// InMemory stores payments in memory for tests and the demo environment.
// Status transitions go through the same guarded path as the SQL store so
// duplicate webhook deliveries behave identically in both.
type InMemory struct {
	mu       sync.RWMutex
	payments map[string]*models.Payment // by payment ID
	byRef    map[string]string          // provider|vendorTxnRef -> payment ID
}

// NewInMemory creates an in-memory payment store.
func NewInMemory() *InMemory {
	return &InMemory{
		payments: make(map[string]*models.Payment),
		byRef:    make(map[string]string),
	}
}

func refKey(name provider.Name, vendorTxnRef string) string {
	return string(name) + "|" + vendorTxnRef
}

// Create persists a new payment.
func (s *InMemory) Create(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := refKey(payment.Provider, payment.VendorTxnRef)
	if _, exists := s.byRef[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	cp := clone(payment)
	s.payments[payment.ID.String()] = cp
	s.byRef[key] = payment.ID.String()
	return nil
}

// FindByID retrieves a payment.
func (s *InMemory) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if payment, ok := s.payments[paymentID.String()]; ok {
		return clone(payment), nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByVendorRef retrieves the payment a vendor delivery refers to.
func (s *InMemory) FindByVendorRef(_ context.Context, name provider.Name, vendorTxnRef string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if paymentID, ok := s.byRef[refKey(name, vendorTxnRef)]; ok {
		return clone(s.payments[paymentID]), nil
	}
	return nil, sentinel.ErrNotFound
}

// ListByApp retrieves payments for an app, newest first.
func (s *InMemory) ListByApp(_ context.Context, appID id.AppID) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Payment
	for _, payment := range s.payments {
		if payment.AppID == appID {
			out = append(out, clone(payment))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// TransitionStatus advances the payment only when the step is legal for its
// current status. Returns false without mutating on an illegal step, which
// is how replayed and out-of-order deliveries become no-ops.
func (s *InMemory) TransitionStatus(_ context.Context, paymentID id.PaymentID, next provider.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[paymentID.String()]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if !payment.CanTransitionTo(next) {
		return false, nil
	}
	payment.Status = next
	payment.UpdatedAt = time.Now()
	return true, nil
}

func sortNewestFirst(payments []*models.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
}

func clone(payment *models.Payment) *models.Payment {
	cp := *payment
	if payment.Metadata != nil {
		cp.Metadata = make(map[string]any, len(payment.Metadata))
		for k, v := range payment.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
