package http

import (
	"context"
	"net/http"
	"reflect"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

// ViolationResponse is one unmet prerequisite.
type ViolationResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	FieldSlug  string `json:"field_slug,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

type CheckPrerequisitesInput struct {
	Body struct {
		Context    string `json:"context" enum:"ACTIVATE_CUSTOMER,COMPLETE_OFFBOARDING,GENERATE_ENGAGEMENT_LETTER,CLOSE_RETAINER_PERIOD" doc:"Gated action"`
		EntityType string `json:"entity_type" enum:"CUSTOMER,CHECKLIST_ITEM,RETAINER,RETAINER_PERIOD" doc:"Kind of entity to inspect"`
		EntityID   string `json:"entity_id" minLength:"1" doc:"Entity to inspect"`
	}
}

type CheckPrerequisitesOutput struct {
	Body struct {
		Passed     bool                `json:"passed"`
		Violations []ViolationResponse `json:"violations"`
	}
}

// DormancyCandidateResponse is a customer suggested for DORMANT.
type DormancyCandidateResponse struct {
	CustomerID        string  `json:"customer_id"`
	Name              string  `json:"name"`
	Status            string  `json:"status"`
	LastActivityAt    *string `json:"last_activity_at"`
	DaysSinceActivity int     `json:"days_since_activity"`
	NeverActive       bool    `json:"never_active"`
	TransitionAllowed bool    `json:"transition_allowed" doc:"Whether DORMANT is reachable from the current status"`
}

// optionalInt is an integer query parameter that remembers whether the
// client sent it, so an explicit 0 differs from an omitted value.
type optionalInt struct {
	Value int
	IsSet bool
}

func (o *optionalInt) Receiver() reflect.Value {
	return reflect.ValueOf(o).Elem().Field(0)
}

func (o *optionalInt) OnParamSet(isSet bool, _ any) {
	o.IsSet = isSet
}

func (o *optionalInt) ptr() *int {
	if !o.IsSet {
		return nil
	}
	v := o.Value
	return &v
}

type ScanDormancyInput struct {
	ThresholdDays optionalInt `query:"thresholdDays" required:"false" minimum:"0" doc:"Inactivity threshold in days; the organization default when omitted. 0 lists every customer without activity today."`
}

type ScanDormancyOutput struct {
	Body struct {
		ThresholdDays int                         `json:"threshold_days"`
		GraceDays     int                         `json:"grace_days"`
		Candidates    []DormancyCandidateResponse `json:"candidates"`
	}
}

func registerPrerequisites(api huma.API, gate *app.PrerequisiteGate, scanner *app.DormancyScanner) {
	huma.Register(api, huma.Operation{
		OperationID: "check-prerequisites",
		Method:      http.MethodPost,
		Path:        "/api/v1/prerequisites/check",
		Summary:     "Check whether a gated action can proceed",
		Tags:        []string{"Prerequisites"},
	}, func(ctx context.Context, input *CheckPrerequisitesInput) (*CheckPrerequisitesOutput, error) {
		result, err := gate.Check(ctx,
			domain.PrerequisiteContext(input.Body.Context),
			domain.EntityType(input.Body.EntityType),
			input.Body.EntityID,
		)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}

		out := &CheckPrerequisitesOutput{}
		out.Body.Passed = result.Passed
		out.Body.Violations = make([]ViolationResponse, len(result.Violations))
		for i, v := range result.Violations {
			out.Body.Violations[i] = ViolationResponse{
				Code:       string(v.Code),
				Message:    v.Message,
				EntityType: string(v.EntityType),
				EntityID:   v.EntityID,
				FieldSlug:  v.FieldSlug,
				Resolution: v.Resolution,
			}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "scan-dormancy",
		Method:      http.MethodGet,
		Path:        "/api/v1/dormancy/candidates",
		Summary:     "List customers inactive past the dormancy threshold",
		Tags:        []string{"Dormancy"},
	}, func(ctx context.Context, input *ScanDormancyInput) (*ScanDormancyOutput, error) {
		threshold := input.ThresholdDays.ptr()
		candidates, err := scanner.Scan(ctx, threshold)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}

		policy := scanner.Policy()
		out := &ScanDormancyOutput{}
		out.Body.ThresholdDays = policy.ThresholdDays
		if threshold != nil {
			out.Body.ThresholdDays = *threshold
		}
		out.Body.GraceDays = policy.GraceDays
		out.Body.Candidates = make([]DormancyCandidateResponse, len(candidates))
		for i, c := range candidates {
			out.Body.Candidates[i] = DormancyCandidateResponse{
				CustomerID:        c.CustomerID,
				Name:              c.Name,
				Status:            string(c.Status),
				LastActivityAt:    formatOptionalTimestamp(c.LastActivityAt),
				DaysSinceActivity: c.DaysSinceActivity,
				NeverActive:       c.NeverActive,
				TransitionAllowed: c.TransitionAllowed,
			}
		}
		return out, nil
	})
}
