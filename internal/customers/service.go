package customers

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/amanat-app/ledger/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateCustomerInput) (Customer, error)
	Get(ctx context.Context, id int64) (*CustomerWithBalance, error)
	List(ctx context.Context, req ListCustomersRequest) ([]CustomerWithBalance, int, error)
	Update(ctx context.Context, id int64, input UpdateCustomerInput) error
	Delete(ctx context.Context, id int64) error
}

// Service handles customer registry operations.
type Service struct {
	repo     RepositoryPort
	balances *BalanceCache
	collator *collate.Collator
	logger   *slog.Logger
}

// NewService builds Service. balances may be nil.
func NewService(repo RepositoryPort, balances *BalanceCache, logger *slog.Logger) *Service {
	// The ledger serves an Arabic-speaking shop; byte order would scramble
	// the customer list.
	return &Service{
		repo:     repo,
		balances: balances,
		collator: collate.New(language.Arabic, collate.IgnoreCase),
		logger:   logger,
	}
}

// CreateCustomer registers a customer.
func (s *Service) CreateCustomer(ctx context.Context, input CreateCustomerInput) (Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Customer{}, errors.New("customers: name is required")
	}
	return s.repo.Create(ctx, input)
}

// GetCustomer returns one customer with derived balance fields.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*CustomerWithBalance, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// ListCustomers returns a filtered page ordered by collated name.
func (s *Service) ListCustomers(ctx context.Context, req ListCustomersRequest) ([]CustomerWithBalance, shared.Pagination, error) {
	if req.PerPage <= 0 {
		req.PerPage = 20
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	customers, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return s.collator.CompareString(customers[i].Name, customers[j].Name) < 0
	})
	return customers, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// UpdateCustomer applies a partial profile update.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, input UpdateCustomerInput) (*CustomerWithBalance, error) {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return nil, errors.New("customers: name is required")
		}
		input.Name = &trimmed
	}
	if err := s.repo.Update(ctx, id, input); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// DeleteCustomer removes the customer and, via the FK cascade, its ledger.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.balances.Invalidate(ctx, id); err != nil && s.logger != nil {
		s.logger.Warn("balance cache invalidation failed",
			slog.Int64("customer_id", id), slog.Any("error", err))
	}
	return nil
}

// OutstandingBalance returns the customer's latest remaining balance,
// cache-aside. A customer with no entries owes zero.
func (s *Service) OutstandingBalance(ctx context.Context, id int64) (int64, error) {
	if balance, ok := s.balances.Get(ctx, id); ok {
		return balance, nil
	}
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	var balance int64
	if customer.RemainingAmount != nil {
		balance = *customer.RemainingAmount
	}
	if err := s.balances.Set(ctx, id, balance); err != nil && s.logger != nil {
		s.logger.Warn("balance cache write failed",
			slog.Int64("customer_id", id), slog.Any("error", err))
	}
	return balance, nil
}
