package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// LeadFetcher reads lead forms and lead pages.
type LeadFetcher struct {
	client     *Client
	leadFields string
	formFields string
}

// NewLeadFetcher creates a LeadFetcher requesting the given field lists.
// Empty lists fall back to the defaults.
func NewLeadFetcher(client *Client, leadFields, formFields string) *LeadFetcher {
	if leadFields == "" {
		leadFields = config.DefaultLeadFields
	}
	if formFields == "" {
		formFields = config.DefaultFormFields
	}
	return &LeadFetcher{client: client, leadFields: leadFields, formFields: formFields}
}

// FetchLeads returns the first page of a form's leads.
func (f *LeadFetcher) FetchLeads(ctx context.Context, token, formID string) (*model.LeadPage, error) {
	params := url.Values{}
	params.Set("fields", f.leadFields)
	params.Set("access_token", token)

	var page model.LeadPage
	if err := f.client.GetJSON(ctx, "leads", f.client.NodeURL("", "", formID, "leads"), params, &page); err != nil {
		return nil, fmt.Errorf("fetch leads for form %s: %w", formID, err)
	}
	return &page, nil
}

// FetchNext follows an API supplied paging.next URL verbatim.
func (f *LeadFetcher) FetchNext(ctx context.Context, next string) (*model.LeadPage, error) {
	var page model.LeadPage
	if err := f.client.GetJSON(ctx, "leads_next", next, nil, &page); err != nil {
		return nil, fmt.Errorf("fetch next lead page: %w", err)
	}
	return &page, nil
}

// FetchLeadForms lists the leadgen forms of a page. Only the first page of forms is read.
func (f *LeadFetcher) FetchLeadForms(ctx context.Context, token, pageID string) ([]model.LeadForm, error) {
	params := url.Values{}
	params.Set("fields", f.formFields)
	params.Set("access_token", token)

	var list model.FormPageList
	if err := f.client.GetJSON(ctx, "leadgen_forms", f.client.NodeURL("", "", pageID, "leadgen_forms"), params, &list); err != nil {
		return nil, fmt.Errorf("fetch leadgen forms for page %s: %w", pageID, err)
	}
	return list.Data, nil
}

// PixelClient posts conversion events to a pixel.
type PixelClient struct {
	client *Client
}

// NewPixelClient creates a PixelClient.
func NewPixelClient(client *Client) *PixelClient {
	return &PixelClient{client: client}
}

// SendEvents makes a single POST to {pixel_id}/events and returns the raw response.
func (p *PixelClient) SendEvents(ctx context.Context, pixelID, token string, payload model.EventPayload) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("access_token", token)

	body, err := p.client.Post(ctx, "pixel_events", p.client.NodeURL("", "", pixelID, "events"), params, payload)
	if err != nil {
		return nil, fmt.Errorf("send events to pixel %s: %w", pixelID, err)
	}
	return json.RawMessage(body), nil
}
