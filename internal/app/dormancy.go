package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/practiq/internal/domain"
)

// DormancyScanner lists customers that have been inactive long enough to be
// moved to DORMANT. It never writes.
type DormancyScanner struct {
	customers domain.CustomerRepository
	policy    domain.DormancyPolicy
	clock     clock
}

// NewDormancyScanner creates a scanner with the organization's default policy.
func NewDormancyScanner(customers domain.CustomerRepository, policy domain.DormancyPolicy, opts ...Option) *DormancyScanner {
	return &DormancyScanner{
		customers: customers,
		policy:    policy,
		clock:     newClock(opts),
	}
}

// Policy returns the organization's default policy.
func (s *DormancyScanner) Policy() domain.DormancyPolicy {
	return s.policy
}

// Scan returns dormancy candidates, most inactive first. A nil
// thresholdDays applies the default threshold. Zero is a real threshold:
// any customer without activity today qualifies.
func (s *DormancyScanner) Scan(ctx context.Context, thresholdDays *int) ([]domain.DormancyCandidate, error) {
	policy := s.policy
	if thresholdDays != nil {
		if *thresholdDays < 0 {
			return nil, domain.Invalid("threshold must not be negative")
		}
		policy.ThresholdDays = *thresholdDays
	}

	customers, err := s.customers.List(ctx, domain.ListFilter{Statuses: domain.DormancyScanStatuses})
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	return domain.EvaluateDormancy(customers, policy, s.clock.Now()), nil
}
