package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

// CustomerResponse is the API representation of a customer.
type CustomerResponse struct {
	ID             string  `json:"id" doc:"Unique identifier"`
	Name           string  `json:"name" doc:"Display name"`
	ContactName    string  `json:"contact_name" doc:"Primary contact"`
	BillingEmail   string  `json:"billing_email" doc:"Billing email address"`
	Status         string  `json:"status" doc:"Lifecycle status"`
	LastActivityAt *string `json:"last_activity_at" doc:"Most recent logged work (ISO 8601), null if none"`
	Version        int64   `json:"version" doc:"Optimistic concurrency version"`
	CreatedAt      string  `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt      string  `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toCustomerResponse(c domain.Customer) CustomerResponse {
	return CustomerResponse{
		ID:             c.ID,
		Name:           c.Name,
		ContactName:    c.ContactName,
		BillingEmail:   c.BillingEmail,
		Status:         string(c.Status),
		LastActivityAt: formatOptionalTimestamp(c.LastActivityAt),
		Version:        c.Version,
		CreatedAt:      formatTimestamp(c.CreatedAt),
		UpdatedAt:      formatTimestamp(c.UpdatedAt),
	}
}

// TransitionRecordResponse is the API representation of an audit entry.
type TransitionRecordResponse struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id"`
	FromStatus string            `json:"from_status"`
	ToStatus   string            `json:"to_status"`
	Event      string            `json:"event"`
	OccurredAt string            `json:"occurred_at"`
	ActorID    string            `json:"actor_id"`
	Details    map[string]string `json:"details,omitempty"`
}

func toTransitionRecordResponse(r domain.LifecycleTransitionRecord) TransitionRecordResponse {
	return TransitionRecordResponse{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		FromStatus: string(r.FromStatus),
		ToStatus:   string(r.ToStatus),
		Event:      string(r.EventType),
		OccurredAt: formatTimestamp(r.OccurredAt),
		ActorID:    r.ActorID,
		Details:    r.Details,
	}
}

// --- Create Customer ---

type CreateCustomerInput struct {
	Body struct {
		Name         string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		ContactName  string `json:"contact_name,omitempty" maxLength:"255" doc:"Primary contact"`
		BillingEmail string `json:"billing_email,omitempty" maxLength:"320" doc:"Billing email address"`
	}
}

type CustomerOutput struct {
	Body CustomerResponse
}

// --- Get Customer ---

type GetCustomerInput struct {
	ID string `path:"id" doc:"Customer ID"`
}

// --- List Customers ---

type ListCustomersInput struct {
	Status string `query:"status" required:"false" doc:"Comma-separated lifecycle statuses to include"`
	Limit  int    `query:"limit" required:"false" default:"50" minimum:"0" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListCustomersOutput struct {
	Body []CustomerResponse
}

// --- Update Profile ---

type UpdateProfileInput struct {
	ID   string `path:"id" doc:"Customer ID"`
	Body struct {
		ExpectedVersion int64   `json:"expected_version" minimum:"1" doc:"Version the caller last read"`
		Name            *string `json:"name,omitempty" maxLength:"255" doc:"New display name"`
		ContactName     *string `json:"contact_name,omitempty" maxLength:"255" doc:"New primary contact"`
		BillingEmail    *string `json:"billing_email,omitempty" maxLength:"320" doc:"New billing email"`
	}
}

// --- Transition ---

type TransitionInput struct {
	ID   string `path:"id" doc:"Customer ID"`
	Body struct {
		Target  string `json:"target" enum:"PROSPECT,ONBOARDING,ACTIVE,DORMANT,OFFBOARDING,OFFBOARDED" doc:"Lifecycle status to move to"`
		ActorID string `json:"actor_id" minLength:"1" doc:"Who requested the transition"`
		Reason  string `json:"reason,omitempty" maxLength:"1000" doc:"Free-text reason recorded in the audit trail"`
	}
}

type TransitionOutput struct {
	Body struct {
		Customer   CustomerResponse         `json:"customer"`
		Transition TransitionRecordResponse `json:"transition"`
	}
}

// --- List Transitions ---

type ListTransitionsOutput struct {
	Body []TransitionRecordResponse
}

func registerCustomers(api huma.API, svc *app.LifecycleService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-customer",
		Method:      http.MethodPost,
		Path:        "/api/v1/customers",
		Summary:     "Create a new customer",
		Tags:        []string{"Customers"},
	}, func(ctx context.Context, input *CreateCustomerInput) (*CustomerOutput, error) {
		customer, err := svc.Create(ctx, app.CreateCustomerInput{
			Name:         input.Body.Name,
			ContactName:  input.Body.ContactName,
			BillingEmail: input.Body.BillingEmail,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &CustomerOutput{Body: toCustomerResponse(customer)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-customer",
		Method:      http.MethodGet,
		Path:        "/api/v1/customers/{id}",
		Summary:     "Get a customer by ID",
		Tags:        []string{"Customers"},
	}, func(ctx context.Context, input *GetCustomerInput) (*CustomerOutput, error) {
		customer, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &CustomerOutput{Body: toCustomerResponse(customer)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-customers",
		Method:      http.MethodGet,
		Path:        "/api/v1/customers",
		Summary:     "List customers",
		Tags:        []string{"Customers"},
	}, func(ctx context.Context, input *ListCustomersInput) (*ListCustomersOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		for _, s := range strings.Split(input.Status, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, domain.LifecycleStatus(strings.ToUpper(s)))
			}
		}

		customers, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}

		resp := make([]CustomerResponse, len(customers))
		for i, c := range customers {
			resp[i] = toCustomerResponse(c)
		}
		return &ListCustomersOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-customer-profile",
		Method:      http.MethodPatch,
		Path:        "/api/v1/customers/{id}",
		Summary:     "Update a customer's profile",
		Tags:        []string{"Customers"},
	}, func(ctx context.Context, input *UpdateProfileInput) (*CustomerOutput, error) {
		customer, err := svc.UpdateProfile(ctx, input.ID, app.ProfileUpdate{
			ExpectedVersion: input.Body.ExpectedVersion,
			Name:            input.Body.Name,
			ContactName:     input.Body.ContactName,
			BillingEmail:    input.Body.BillingEmail,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &CustomerOutput{Body: toCustomerResponse(customer)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-customer",
		Method:      http.MethodPost,
		Path:        "/api/v1/customers/{id}/transitions",
		Summary:     "Move a customer to another lifecycle status",
		Tags:        []string{"Customers"},
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		result, err := svc.Transition(ctx, app.TransitionInput{
			CustomerID: input.ID,
			Target:     domain.LifecycleStatus(input.Body.Target),
			ActorID:    input.Body.ActorID,
			Reason:     input.Body.Reason,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		out := &TransitionOutput{}
		out.Body.Customer = toCustomerResponse(result.Customer)
		out.Body.Transition = toTransitionRecordResponse(result.Record)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-customer-transitions",
		Method:      http.MethodGet,
		Path:        "/api/v1/customers/{id}/transitions",
		Summary:     "List a customer's lifecycle history",
		Tags:        []string{"Customers"},
	}, func(ctx context.Context, input *GetCustomerInput) (*ListTransitionsOutput, error) {
		records, err := svc.ListTransitions(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		resp := make([]TransitionRecordResponse, len(records))
		for i, r := range records {
			resp[i] = toTransitionRecordResponse(r)
		}
		return &ListTransitionsOutput{Body: resp}, nil
	})
}
