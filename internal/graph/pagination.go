package graph

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// PageFetcher is the part of LeadFetcher the walker needs.
type PageFetcher interface {
	FetchLeads(ctx context.Context, token, formID string) (*model.LeadPage, error)
	FetchNext(ctx context.Context, next string) (*model.LeadPage, error)
}

// WalkSummary describes how far a walk got.
type WalkSummary struct {
	Pages     int
	Leads     int
	Truncated bool
	// Err is the failure that truncated the walk, if any.
	Err error
}

// Walker follows paging.next across all pages of a form's leads.
type Walker struct {
	fetcher PageFetcher
}

// NewWalker creates a Walker.
func NewWalker(fetcher PageFetcher) *Walker {
	return &Walker{fetcher: fetcher}
}

// Walk fetches the pages of formID in order and hands each batch to yield
// before requesting the next one. A first page failure is returned. A later
// failure, or cancellation between pages, stops the walk and is reported in the
// summary only, so already yielded pages stay ingested. There is no page cap.
func (w *Walker) Walk(ctx context.Context, token, formID string, yield func(ctx context.Context, leads []model.RawLead)) (WalkSummary, error) {
	log := logger.FromContext(ctx).With(zap.String("form_id", formID))
	var summary WalkSummary

	page, err := w.fetcher.FetchLeads(ctx, token, formID)
	if err != nil {
		observer.IncPagesFetched("error")
		return summary, err
	}

	for {
		observer.IncPagesFetched("success")
		summary.Pages++
		summary.Leads += len(page.Data)
		if len(page.Data) > 0 {
			yield(ctx, page.Data)
		}

		next := page.NextCursor()
		if next == "" {
			return summary, nil
		}

		if err := ctx.Err(); err != nil {
			summary.Truncated = true
			summary.Err = err
			log.Warn("Lead pagination stopped by context", zap.Int("pages", summary.Pages), zap.Error(err))
			return summary, nil
		}

		page, err = w.fetcher.FetchNext(ctx, next)
		if err != nil {
			observer.IncPagesFetched("error")
			summary.Truncated = true
			summary.Err = err
			log.Error(paginationFailureMessage(err),
				zap.Int("pages_ingested", summary.Pages),
				zap.Int("leads_seen", summary.Leads),
				zap.Error(err))
			return summary, nil
		}
	}
}

func paginationFailureMessage(err error) string {
	switch {
	case apperrors.IsTimeoutError(err):
		return "Pagination Timeout"
	case apperrors.IsNetworkError(err):
		return "Pagination Network Error"
	case errors.Is(err, context.Canceled):
		return "Pagination Canceled"
	default:
		return "Pagination Error"
	}
}
