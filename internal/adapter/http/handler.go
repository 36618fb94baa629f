package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

const (
	timestampFormat = "2006-01-02T15:04:05Z"
	dateFormat      = "2006-01-02"
)

// Services bundles the application services exposed over HTTP.
type Services struct {
	Lifecycle     *app.LifecycleService
	Checklists    *app.ChecklistService
	Prerequisites *app.PrerequisiteGate
	Retainers     *app.RetainerService
	TimeEntries   *app.TimeEntryService
	Dormancy      *app.DormancyScanner
}

// Register adds all API routes to the Huma API.
func Register(api huma.API, svc Services) {
	registerCustomers(api, svc.Lifecycle)
	registerChecklists(api, svc.Checklists)
	registerPrerequisites(api, svc.Prerequisites, svc.Dormancy)
	registerRetainers(api, svc.Retainers)
	registerTimeEntries(api, svc.TimeEntries)
}

var notFoundErrors = []error{
	domain.ErrCustomerNotFound,
	domain.ErrChecklistNotFound,
	domain.ErrChecklistItemNotFound,
	domain.ErrTemplateNotFound,
	domain.ErrRetainerNotFound,
	domain.ErrPeriodNotFound,
	domain.ErrInvoiceDraftNotFound,
	domain.ErrTimeEntryNotFound,
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(ctx context.Context, err error) error {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return huma.Error404NotFound(target.Error())
		}
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return huma.Error409Conflict(conflict.Error())
	}

	var depErr *domain.DependencyError
	if errors.As(err, &depErr) {
		details := make([]error, len(depErr.Violations))
		for i, v := range depErr.Violations {
			details[i] = &huma.ErrorDetail{
				Message:  fmt.Sprintf("%s: %s", v.Code, v.Message),
				Location: violationLocation(v),
				Value:    v.Resolution,
			}
		}
		return huma.Error422UnprocessableEntity(fmt.Sprintf("%s: %s", domain.CodeUnmetPrerequisites, depErr.Error()), details...)
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		details := make([]error, len(valErr.Blocking))
		for i, b := range valErr.Blocking {
			details[i] = &huma.ErrorDetail{Message: b, Location: "blocking"}
		}
		return huma.Error422UnprocessableEntity(valErr.Error(), details...)
	}

	slog.ErrorContext(ctx, "request failed", "error", err)
	return huma.Error500InternalServerError("internal server error")
}

func violationLocation(v domain.PrerequisiteViolation) string {
	loc := strings.ToLower(string(v.EntityType)) + "/" + v.EntityID
	if v.FieldSlug != "" {
		loc += "." + v.FieldSlug
	}
	return loc
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, domain.Invalid("%s: %q is not a decimal number", field, s)
	}
	return d, nil
}

// parseNullDecimal treats an empty string as null.
func parseNullDecimal(field, s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(field, s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// parseDate treats an empty string as the zero time.
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, domain.Invalid("%s: %q is not a YYYY-MM-DD date", field, s)
	}
	return t, nil
}

func parseTimestamp(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, domain.Invalid("%s: %q is not an ISO 8601 timestamp", field, s)
	}
	return t.UTC(), nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func formatOptionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTimestamp(*t)
	return &s
}

func formatNullDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
