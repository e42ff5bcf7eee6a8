package service

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"printpos/internal/domain"
	"printpos/internal/store"
)

var (
	ErrMissingCustomerIdentity = errors.New("credit sale requires customer name and contact")
	ErrNotPending              = errors.New("sale is not pending")
	ErrInvalidProfile          = errors.New("invalid shop profile")
)

// Service owns every mutation of the ledger. Read-modify-commit cycles are
// serialized by mu so a checkout never races a settlement or a purchase.
type Service struct {
	ledger store.Ledger
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

type Option func(*Service)

// WithClock replaces the wall clock used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(ledger store.Ledger, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		ledger: ledger,
		logger: logger.With("component", "service"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentOnline, domain.PaymentCredit:
		return true
	default:
		return false
	}
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
