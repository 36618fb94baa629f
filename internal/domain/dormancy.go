package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// DormancyCandidate is a customer the scanner suggests moving to DORMANT.
type DormancyCandidate struct {
	CustomerID        string
	Name              string
	Status            LifecycleStatus
	LastActivityAt    *time.Time
	DaysSinceActivity int
	NeverActive       bool
	// TransitionAllowed is false when the edge table has no path to DORMANT
	// from Status; the candidate is informational only.
	TransitionAllowed bool
}

// DormancyPolicy holds the inactivity thresholds of a scan.
type DormancyPolicy struct {
	ThresholdDays int
	GraceDays     int
}

// DormancyScanStatuses are the statuses a scan inspects.
var DormancyScanStatuses = []LifecycleStatus{StatusActive, StatusOnboarding}

// EvaluateDormancy returns the customers that crossed the policy threshold,
// most inactive first. Customers never active are measured from creation and
// also get the grace period.
func EvaluateDormancy(customers []Customer, policy DormancyPolicy, now time.Time) []DormancyCandidate {
	today := Date(now)
	out := []DormancyCandidate{}
	for _, c := range customers {
		if !slices.Contains(DormancyScanStatuses, c.Status) {
			continue
		}

		since := c.CreatedAt
		limit := policy.ThresholdDays + policy.GraceDays
		if c.LastActivityAt != nil {
			since = *c.LastActivityAt
			limit = policy.ThresholdDays
		}

		days := int(today.Sub(Date(since)).Hours() / 24)
		if days <= limit {
			continue
		}

		_, allowed := EventFor(c.Status, StatusDormant)
		out = append(out, DormancyCandidate{
			CustomerID:        c.ID,
			Name:              c.Name,
			Status:            c.Status,
			LastActivityAt:    c.LastActivityAt,
			DaysSinceActivity: days,
			NeverActive:       c.LastActivityAt == nil,
			TransitionAllowed: allowed,
		})
	}

	slices.SortStableFunc(out, func(a, b DormancyCandidate) int {
		return cmp.Or(cmp.Compare(b.DaysSinceActivity, a.DaysSinceActivity), strings.Compare(a.CustomerID, b.CustomerID))
	})
	return out
}
