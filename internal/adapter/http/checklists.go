package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

// ChecklistItemResponse is the API representation of a checklist item.
type ChecklistItemResponse struct {
	ID               string  `json:"id"`
	Position         int     `json:"position"`
	Key              string  `json:"key"`
	Title            string  `json:"title"`
	Status           string  `json:"status"`
	Required         bool    `json:"required"`
	RequiresDocument bool    `json:"requires_document"`
	DependsOnItemID  string  `json:"depends_on_item_id,omitempty"`
	CompletedBy      string  `json:"completed_by,omitempty"`
	CompletedAt      *string `json:"completed_at"`
	DocumentID       string  `json:"document_id,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	Version          int64   `json:"version"`
}

func toChecklistItemResponse(item domain.ChecklistItem) ChecklistItemResponse {
	return ChecklistItemResponse{
		ID:               item.ID,
		Position:         item.Position,
		Key:              item.Key,
		Title:            item.Title,
		Status:           string(item.Status),
		Required:         item.Required,
		RequiresDocument: item.RequiresDocument,
		DependsOnItemID:  item.DependsOnItemID,
		CompletedBy:      item.CompletedBy,
		CompletedAt:      formatOptionalTimestamp(item.CompletedAt),
		DocumentID:       item.DocumentID,
		Notes:            item.Notes,
		Version:          item.Version,
	}
}

// ChecklistResponse is the API representation of a checklist instance.
type ChecklistResponse struct {
	ID              string                  `json:"id"`
	CustomerID      string                  `json:"customer_id"`
	TemplateID      string                  `json:"template_id"`
	Stage           string                  `json:"stage"`
	Version         int64                   `json:"version"`
	PendingRequired int                     `json:"pending_required" doc:"Required items still pending"`
	Items           []ChecklistItemResponse `json:"items"`
	CreatedAt       string                  `json:"created_at"`
	UpdatedAt       string                  `json:"updated_at"`
}

func toChecklistResponse(inst domain.ChecklistInstance) ChecklistResponse {
	items := make([]ChecklistItemResponse, len(inst.Items))
	for i, item := range inst.Items {
		items[i] = toChecklistItemResponse(item)
	}
	return ChecklistResponse{
		ID:              inst.ID,
		CustomerID:      inst.CustomerID,
		TemplateID:      inst.TemplateID,
		Stage:           string(inst.Stage),
		Version:         inst.Version,
		PendingRequired: len(inst.PendingRequired()),
		Items:           items,
		CreatedAt:       formatTimestamp(inst.CreatedAt),
		UpdatedAt:       formatTimestamp(inst.UpdatedAt),
	}
}

type ChecklistOutput struct {
	Body ChecklistResponse
}

type GetChecklistInput struct {
	ID string `path:"id" doc:"Checklist instance ID"`
}

type InstantiateChecklistInput struct {
	ID   string `path:"id" doc:"Customer ID"`
	Body struct {
		TemplateID string `json:"template_id,omitempty" doc:"Template to instantiate; the default onboarding template when empty"`
	}
}

type ItemActionInput struct {
	ID   string `path:"id" doc:"Checklist item ID"`
	Body struct {
		ExpectedVersion int64  `json:"expected_version,omitempty" minimum:"0" doc:"Item version the caller last read"`
		ActorID         string `json:"actor_id" minLength:"1" doc:"Who performed the step"`
		Notes           string `json:"notes,omitempty" maxLength:"2000" doc:"Notes; the reason when skipping"`
		DocumentID      string `json:"document_id,omitempty" doc:"Reference to the uploaded document"`
	}
}

type ReopenItemInput struct {
	ID   string `path:"id" doc:"Checklist item ID"`
	Body struct {
		ExpectedVersion int64 `json:"expected_version,omitempty" minimum:"0" doc:"Item version the caller last read"`
	}
}

type ChecklistItemOutput struct {
	Body ChecklistItemResponse
}

func registerChecklists(api huma.API, svc *app.ChecklistService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-customer-checklist",
		Method:      http.MethodGet,
		Path:        "/api/v1/customers/{id}/checklist",
		Summary:     "Get a customer's onboarding checklist",
		Tags:        []string{"Checklists"},
	}, func(ctx context.Context, input *GetCustomerInput) (*ChecklistOutput, error) {
		inst, err := svc.GetForCustomer(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ChecklistOutput{Body: toChecklistResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "instantiate-checklist",
		Method:      http.MethodPost,
		Path:        "/api/v1/customers/{id}/checklist",
		Summary:     "Instantiate a checklist for a customer",
		Tags:        []string{"Checklists"},
	}, func(ctx context.Context, input *InstantiateChecklistInput) (*ChecklistOutput, error) {
		inst, err := svc.Instantiate(ctx, input.ID, input.Body.TemplateID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ChecklistOutput{Body: toChecklistResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-checklist",
		Method:      http.MethodGet,
		Path:        "/api/v1/checklists/{id}",
		Summary:     "Get a checklist instance",
		Tags:        []string{"Checklists"},
	}, func(ctx context.Context, input *GetChecklistInput) (*ChecklistOutput, error) {
		inst, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ChecklistOutput{Body: toChecklistResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-checklist-item",
		Method:      http.MethodPost,
		Path:        "/api/v1/checklist-items/{id}/complete",
		Summary:     "Complete a checklist item",
		Tags:        []string{"Checklists"},
	}, func(ctx context.Context, input *ItemActionInput) (*ChecklistItemOutput, error) {
		item, err := svc.Complete(ctx, toItemAction(input))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ChecklistItemOutput{Body: toChecklistItemResponse(item)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "skip-checklist-item",
		Method:      http.MethodPost,
		Path:        "/api/v1/checklist-items/{id}/skip",
		Summary:     "Skip an optional checklist item",
		Tags:        []string{"Checklists"},
	}, func(ctx context.Context, input *ItemActionInput) (*ChecklistItemOutput, error) {
		item, err := svc.Skip(ctx, toItemAction(input))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ChecklistItemOutput{Body: toChecklistItemResponse(item)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reopen-checklist-item",
		Method:      http.MethodPost,
		Path:        "/api/v1/checklist-items/{id}/reopen",
		Summary:     "Reopen a completed checklist item",
		Tags:        []string{"Checklists"},
	}, func(ctx context.Context, input *ReopenItemInput) (*ChecklistItemOutput, error) {
		item, err := svc.Reopen(ctx, app.ItemAction{
			ItemID:          input.ID,
			ExpectedVersion: input.Body.ExpectedVersion,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ChecklistItemOutput{Body: toChecklistItemResponse(item)}, nil
	})
}

func toItemAction(input *ItemActionInput) app.ItemAction {
	return app.ItemAction{
		ItemID:          input.ID,
		ExpectedVersion: input.Body.ExpectedVersion,
		ActorID:         input.Body.ActorID,
		Notes:           input.Body.Notes,
		DocumentID:      input.Body.DocumentID,
	}
}
