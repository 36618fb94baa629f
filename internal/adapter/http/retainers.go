package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

// RetainerResponse is the API representation of a retainer. Hours and money
// travel as decimal strings.
type RetainerResponse struct {
	ID               string  `json:"id"`
	CustomerID       string  `json:"customer_id"`
	Type             string  `json:"type"`
	Status           string  `json:"status"`
	AllocatedHours   *string `json:"allocated_hours" doc:"Hours per period; null for fixed fee retainers"`
	PeriodFee        string  `json:"period_fee"`
	Currency         string  `json:"currency"`
	RolloverPolicy   string  `json:"rollover_policy"`
	RolloverCapHours *string `json:"rollover_cap_hours"`
	Version          int64   `json:"version"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func toRetainerResponse(r domain.Retainer) RetainerResponse {
	return RetainerResponse{
		ID:               r.ID,
		CustomerID:       r.CustomerID,
		Type:             string(r.Type),
		Status:           string(r.Status),
		AllocatedHours:   formatNullDecimal(r.AllocatedHours),
		PeriodFee:        r.PeriodFee.StringFixed(2),
		Currency:         r.Currency,
		RolloverPolicy:   string(r.RolloverPolicy),
		RolloverCapHours: formatNullDecimal(r.RolloverCapHours),
		Version:          r.Version,
		CreatedAt:        formatTimestamp(r.CreatedAt),
		UpdatedAt:        formatTimestamp(r.UpdatedAt),
	}
}

// PeriodResponse is the API representation of a retainer period.
type PeriodResponse struct {
	ID                 string  `json:"id"`
	RetainerID         string  `json:"retainer_id"`
	PeriodStart        string  `json:"period_start"`
	PeriodEnd          string  `json:"period_end"`
	Status             string  `json:"status"`
	AllocatedHours     *string `json:"allocated_hours"`
	BaseAllocatedHours *string `json:"base_allocated_hours"`
	ConsumedHours      string  `json:"consumed_hours"`
	RemainingHours     *string `json:"remaining_hours"`
	RolloverHoursIn    *string `json:"rollover_hours_in"`
	RolloverHoursOut   *string `json:"rollover_hours_out"`
	OverageHours       *string `json:"overage_hours"`
	InvoiceID          string  `json:"invoice_id,omitempty"`
	ReadyToClose       bool    `json:"ready_to_close"`
	Version            int64   `json:"version"`
	ClosedAt           *string `json:"closed_at"`
}

func toPeriodResponse(p domain.RetainerPeriod) PeriodResponse {
	return PeriodResponse{
		ID:                 p.ID,
		RetainerID:         p.RetainerID,
		PeriodStart:        p.PeriodStart.Format(dateFormat),
		PeriodEnd:          p.PeriodEnd.Format(dateFormat),
		Status:             string(p.Status),
		AllocatedHours:     formatNullDecimal(p.AllocatedHours),
		BaseAllocatedHours: formatNullDecimal(p.BaseAllocatedHours),
		ConsumedHours:      p.ConsumedHours.String(),
		RemainingHours:     formatNullDecimal(p.RemainingHours),
		RolloverHoursIn:    formatNullDecimal(p.RolloverHoursIn),
		RolloverHoursOut:   formatNullDecimal(p.RolloverHoursOut),
		OverageHours:       formatNullDecimal(p.OverageHours),
		InvoiceID:          p.InvoiceID,
		ReadyToClose:       p.ReadyToClose,
		Version:            p.Version,
		ClosedAt:           formatOptionalTimestamp(p.ClosedAt),
	}
}

// InvoiceLineResponse is one priced line of an invoice draft.
type InvoiceLineResponse struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

// InvoiceDraftResponse is the API representation of an invoice draft.
type InvoiceDraftResponse struct {
	ID         string                `json:"id"`
	RetainerID string                `json:"retainer_id"`
	PeriodID   string                `json:"period_id"`
	CustomerID string                `json:"customer_id"`
	Currency   string                `json:"currency"`
	Lines      []InvoiceLineResponse `json:"lines"`
	Total      string                `json:"total"`
	CreatedAt  string                `json:"created_at"`
}

func toInvoiceDraftResponse(d domain.InvoiceDraft) InvoiceDraftResponse {
	lines := make([]InvoiceLineResponse, len(d.Lines))
	for i, l := range d.Lines {
		lines[i] = InvoiceLineResponse{
			Kind:        string(l.Kind),
			Description: l.Description,
			Quantity:    l.Quantity.String(),
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Amount:      l.Amount.StringFixed(2),
		}
	}
	return InvoiceDraftResponse{
		ID:         d.ID,
		RetainerID: d.RetainerID,
		PeriodID:   d.PeriodID,
		CustomerID: d.CustomerID,
		Currency:   d.Currency,
		Lines:      lines,
		Total:      d.Total.StringFixed(2),
		CreatedAt:  formatTimestamp(d.CreatedAt),
	}
}

// BillingRateResponse is the API representation of a billing rate.
type BillingRateResponse struct {
	ID            string `json:"id"`
	CustomerID    string `json:"customer_id,omitempty" doc:"Empty for the organization-wide rate"`
	HourlyRate    string `json:"hourly_rate"`
	EffectiveFrom string `json:"effective_from"`
}

// --- Create Retainer ---

type CreateRetainerInput struct {
	Body struct {
		CustomerID       string `json:"customer_id" minLength:"1" doc:"Customer ID"`
		Type             string `json:"type" enum:"HOUR_BANK,FIXED_FEE" doc:"Retainer type"`
		AllocatedHours   string `json:"allocated_hours,omitempty" doc:"Hours per period (hour bank only)"`
		PeriodFee        string `json:"period_fee" minLength:"1" doc:"Fee per period"`
		Currency         string `json:"currency,omitempty" minLength:"3" maxLength:"3" doc:"ISO 4217 code; the organization default when empty"`
		RolloverPolicy   string `json:"rollover_policy,omitempty" enum:"FORFEIT,ROLLOVER" doc:"What happens to unused hours"`
		RolloverCapHours string `json:"rollover_cap_hours,omitempty" doc:"Max hours carried into the next period"`
		StartDate        string `json:"start_date,omitempty" format:"date" doc:"First period start (YYYY-MM-DD); today when empty"`
	}
}

type CreateRetainerOutput struct {
	Body struct {
		Retainer RetainerResponse `json:"retainer"`
		Period   PeriodResponse   `json:"period"`
	}
}

type GetRetainerInput struct {
	ID string `path:"id" doc:"Retainer ID"`
}

type RetainerOutput struct {
	Body RetainerResponse
}

type SetRetainerStatusInput struct {
	ID   string `path:"id" doc:"Retainer ID"`
	Body struct {
		ExpectedVersion int64  `json:"expected_version" minimum:"1" doc:"Version the caller last read"`
		Status          string `json:"status" enum:"ACTIVE,PAUSED,TERMINATED" doc:"New retainer status"`
	}
}

type ListPeriodsOutput struct {
	Body []PeriodResponse
}

type PeriodInput struct {
	ID       string `path:"id" doc:"Retainer ID"`
	PeriodID string `path:"periodId" doc:"Period ID"`
}

type PeriodOutput struct {
	Body PeriodResponse
}

type ClosePeriodOutput struct {
	Body struct {
		Retainer     RetainerResponse     `json:"retainer"`
		ClosedPeriod PeriodResponse       `json:"closed_period"`
		NextPeriod   PeriodResponse       `json:"next_period"`
		InvoiceDraft InvoiceDraftResponse `json:"invoice_draft"`
	}
}

type GetInvoiceDraftInput struct {
	ID string `path:"id" doc:"Invoice draft ID"`
}

type InvoiceDraftOutput struct {
	Body InvoiceDraftResponse
}

type ListInvoiceDraftsOutput struct {
	Body []InvoiceDraftResponse
}

type SetBillingRateInput struct {
	Body struct {
		CustomerID    string `json:"customer_id,omitempty" doc:"Customer ID; omit for the organization-wide rate"`
		HourlyRate    string `json:"hourly_rate" minLength:"1" doc:"Hourly overage rate"`
		EffectiveFrom string `json:"effective_from,omitempty" format:"date-time" doc:"When the rate takes effect (ISO 8601); now when empty"`
	}
}

type BillingRateOutput struct {
	Body BillingRateResponse
}

func registerRetainers(api huma.API, svc *app.RetainerService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-retainer",
		Method:      http.MethodPost,
		Path:        "/api/v1/retainers",
		Summary:     "Create a retainer and open its first period",
		Tags:        []string{"Retainers"},
	}, func(ctx context.Context, input *CreateRetainerInput) (*CreateRetainerOutput, error) {
		in, err := toCreateRetainer(input)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		retainer, period, err := svc.Create(ctx, in)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		out := &CreateRetainerOutput{}
		out.Body.Retainer = toRetainerResponse(retainer)
		out.Body.Period = toPeriodResponse(period)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-retainer",
		Method:      http.MethodGet,
		Path:        "/api/v1/retainers/{id}",
		Summary:     "Get a retainer by ID",
		Tags:        []string{"Retainers"},
	}, func(ctx context.Context, input *GetRetainerInput) (*RetainerOutput, error) {
		retainer, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &RetainerOutput{Body: toRetainerResponse(retainer)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-retainer-status",
		Method:      http.MethodPost,
		Path:        "/api/v1/retainers/{id}/status",
		Summary:     "Pause, resume or terminate a retainer",
		Tags:        []string{"Retainers"},
	}, func(ctx context.Context, input *SetRetainerStatusInput) (*RetainerOutput, error) {
		retainer, err := svc.SetStatus(ctx, input.ID, input.Body.ExpectedVersion, domain.RetainerStatus(input.Body.Status))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &RetainerOutput{Body: toRetainerResponse(retainer)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-retainer-periods",
		Method:      http.MethodGet,
		Path:        "/api/v1/retainers/{id}/periods",
		Summary:     "List a retainer's billing periods",
		Tags:        []string{"Retainers"},
	}, func(ctx context.Context, input *GetRetainerInput) (*ListPeriodsOutput, error) {
		periods, err := svc.ListPeriods(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		resp := make([]PeriodResponse, len(periods))
		for i, p := range periods {
			resp[i] = toPeriodResponse(p)
		}
		return &ListPeriodsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-retainer-period",
		Method:      http.MethodGet,
		Path:        "/api/v1/retainers/{id}/periods/{periodId}",
		Summary:     "Get a billing period",
		Tags:        []string{"Retainers"},
	}, func(ctx context.Context, input *PeriodInput) (*PeriodOutput, error) {
		period, err := svc.GetPeriod(ctx, input.ID, input.PeriodID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PeriodOutput{Body: toPeriodResponse(period)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-retainer-period",
		Method:      http.MethodPost,
		Path:        "/api/v1/retainers/{id}/periods/{periodId}/close",
		Summary:     "Close a billing period and draft its invoice",
		Tags:        []string{"Retainers"},
	}, func(ctx context.Context, input *PeriodInput) (*ClosePeriodOutput, error) {
		result, err := svc.ClosePeriod(ctx, input.ID, input.PeriodID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		out := &ClosePeriodOutput{}
		out.Body.Retainer = toRetainerResponse(result.Retainer)
		out.Body.ClosedPeriod = toPeriodResponse(result.ClosedPeriod)
		out.Body.NextPeriod = toPeriodResponse(result.NextPeriod)
		out.Body.InvoiceDraft = toInvoiceDraftResponse(result.Draft)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-invoice-drafts",
		Method:      http.MethodGet,
		Path:        "/api/v1/retainers/{id}/invoice-drafts",
		Summary:     "List a retainer's invoice drafts",
		Tags:        []string{"Invoicing"},
	}, func(ctx context.Context, input *GetRetainerInput) (*ListInvoiceDraftsOutput, error) {
		drafts, err := svc.ListInvoiceDrafts(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		resp := make([]InvoiceDraftResponse, len(drafts))
		for i, d := range drafts {
			resp[i] = toInvoiceDraftResponse(d)
		}
		return &ListInvoiceDraftsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-invoice-draft",
		Method:      http.MethodGet,
		Path:        "/api/v1/invoice-drafts/{id}",
		Summary:     "Get an invoice draft",
		Tags:        []string{"Invoicing"},
	}, func(ctx context.Context, input *GetInvoiceDraftInput) (*InvoiceDraftOutput, error) {
		draft, err := svc.GetInvoiceDraft(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &InvoiceDraftOutput{Body: toInvoiceDraftResponse(draft)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-billing-rate",
		Method:      http.MethodPost,
		Path:        "/api/v1/billing-rates",
		Summary:     "Record an hourly billing rate",
		Tags:        []string{"Invoicing"},
	}, func(ctx context.Context, input *SetBillingRateInput) (*BillingRateOutput, error) {
		in, err := toSetRate(input)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		rate, err := svc.SetBillingRate(ctx, in)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &BillingRateOutput{Body: BillingRateResponse{
			ID:            rate.ID,
			CustomerID:    rate.CustomerID,
			HourlyRate:    rate.HourlyRate.StringFixed(2),
			EffectiveFrom: formatTimestamp(rate.EffectiveFrom),
		}}, nil
	})
}

func toCreateRetainer(input *CreateRetainerInput) (app.CreateRetainerInput, error) {
	b := input.Body
	fee, err := parseDecimal("period_fee", b.PeriodFee)
	if err != nil {
		return app.CreateRetainerInput{}, err
	}
	allocated, err := parseNullDecimal("allocated_hours", b.AllocatedHours)
	if err != nil {
		return app.CreateRetainerInput{}, err
	}
	rolloverCap, err := parseNullDecimal("rollover_cap_hours", b.RolloverCapHours)
	if err != nil {
		return app.CreateRetainerInput{}, err
	}
	start, err := parseDate("start_date", b.StartDate)
	if err != nil {
		return app.CreateRetainerInput{}, err
	}
	return app.CreateRetainerInput{
		CustomerID:       b.CustomerID,
		Type:             domain.RetainerType(b.Type),
		AllocatedHours:   allocated,
		PeriodFee:        fee,
		Currency:         b.Currency,
		RolloverPolicy:   domain.RolloverPolicy(b.RolloverPolicy),
		RolloverCapHours: rolloverCap,
		StartDate:        start,
	}, nil
}

func toSetRate(input *SetBillingRateInput) (app.SetRateInput, error) {
	rate, err := parseDecimal("hourly_rate", input.Body.HourlyRate)
	if err != nil {
		return app.SetRateInput{}, err
	}
	in := app.SetRateInput{CustomerID: input.Body.CustomerID, HourlyRate: rate}
	if input.Body.EffectiveFrom != "" {
		in.EffectiveFrom, err = parseTimestamp("effective_from", input.Body.EffectiveFrom)
		if err != nil {
			return app.SetRateInput{}, err
		}
	}
	return in, nil
}
