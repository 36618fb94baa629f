package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

// TimeEntryResponse is the API representation of logged time.
type TimeEntryResponse struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	RetainerID  string `json:"retainer_id,omitempty"`
	WorkDate    string `json:"work_date"`
	Hours       string `json:"hours"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	ActorID     string `json:"actor_id"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toTimeEntryResponse(e domain.TimeEntry) TimeEntryResponse {
	return TimeEntryResponse{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		RetainerID:  e.RetainerID,
		WorkDate:    e.WorkDate.Format(dateFormat),
		Hours:       e.Hours.String(),
		Description: e.Description,
		Status:      string(e.Status),
		ActorID:     e.ActorID,
		CreatedAt:   formatTimestamp(e.CreatedAt),
		UpdatedAt:   formatTimestamp(e.UpdatedAt),
	}
}

type RecordTimeInput struct {
	Body struct {
		CustomerID  string `json:"customer_id" minLength:"1" doc:"Customer ID"`
		RetainerID  string `json:"retainer_id,omitempty" doc:"Retainer the hours draw from"`
		WorkDate    string `json:"work_date" format:"date" doc:"Day the work was done (YYYY-MM-DD)"`
		Hours       string `json:"hours" minLength:"1" doc:"Hours worked, as a decimal"`
		Description string `json:"description,omitempty" maxLength:"2000" doc:"What was done"`
		ActorID     string `json:"actor_id" minLength:"1" doc:"Who did the work"`
	}
}

type TimeEntryInput struct {
	ID string `path:"id" doc:"Time entry ID"`
}

type TimeEntryOutput struct {
	Body TimeEntryResponse
}

func registerTimeEntries(api huma.API, svc *app.TimeEntryService) {
	huma.Register(api, huma.Operation{
		OperationID: "record-time-entry",
		Method:      http.MethodPost,
		Path:        "/api/v1/time-entries",
		Summary:     "Log time against a customer",
		Tags:        []string{"Time entries"},
	}, func(ctx context.Context, input *RecordTimeInput) (*TimeEntryOutput, error) {
		hours, err := parseDecimal("hours", input.Body.Hours)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		workDate, err := parseDate("work_date", input.Body.WorkDate)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}

		entry, err := svc.Record(ctx, app.RecordTimeInput{
			CustomerID:  input.Body.CustomerID,
			RetainerID:  input.Body.RetainerID,
			WorkDate:    workDate,
			Hours:       hours,
			Description: input.Body.Description,
			ActorID:     input.Body.ActorID,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &TimeEntryOutput{Body: toTimeEntryResponse(entry)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-time-entry",
		Method:      http.MethodGet,
		Path:        "/api/v1/time-entries/{id}",
		Summary:     "Get a time entry",
		Tags:        []string{"Time entries"},
	}, func(ctx context.Context, input *TimeEntryInput) (*TimeEntryOutput, error) {
		entry, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &TimeEntryOutput{Body: toTimeEntryResponse(entry)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-time-entry",
		Method:      http.MethodPost,
		Path:        "/api/v1/time-entries/{id}/approve",
		Summary:     "Approve a submitted time entry",
		Tags:        []string{"Time entries"},
	}, func(ctx context.Context, input *TimeEntryInput) (*TimeEntryOutput, error) {
		entry, err := svc.Approve(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &TimeEntryOutput{Body: toTimeEntryResponse(entry)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-time-entry",
		Method:      http.MethodPost,
		Path:        "/api/v1/time-entries/{id}/reject",
		Summary:     "Reject a submitted time entry",
		Tags:        []string{"Time entries"},
	}, func(ctx context.Context, input *TimeEntryInput) (*TimeEntryOutput, error) {
		entry, err := svc.Reject(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &TimeEntryOutput{Body: toTimeEntryResponse(entry)}, nil
	})
}
