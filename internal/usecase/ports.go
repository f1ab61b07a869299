package usecase

import (
	"context"
	"encoding/json"

	"gitlab.com/timkado/api/meta-lead-sync/internal/graph"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// TokenProvider exchanges page credentials for a page access token.
type TokenProvider interface {
	GetPageAccessToken(ctx context.Context, creds model.PageCredentials) (string, error)
}

// LeadWalker walks every page of a form's leads.
type LeadWalker interface {
	Walk(ctx context.Context, token, formID string, yield func(ctx context.Context, leads []model.RawLead)) (graph.WalkSummary, error)
}

// FormLister lists the leadgen forms of a page.
type FormLister interface {
	FetchLeadForms(ctx context.Context, token, pageID string) ([]model.LeadForm, error)
}

// EventSender posts a conversion event payload to a pixel.
type EventSender interface {
	SendEvents(ctx context.Context, pixelID, token string, payload model.EventPayload) (json.RawMessage, error)
}

// Dispatcher sends the conversion event of a record. It never returns an error.
type Dispatcher interface {
	Dispatch(ctx context.Context, record *model.CrmRecord, page *model.PageConfig) model.DispatchResult
}

var (
	_ TokenProvider = (*graph.TokenService)(nil)
	_ LeadWalker    = (*graph.Walker)(nil)
	_ FormLister    = (*graph.LeadFetcher)(nil)
	_ EventSender   = (*graph.PixelClient)(nil)
	_ Dispatcher    = (*EventSync)(nil)
)
