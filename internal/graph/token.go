package graph

import (
	"context"
	"fmt"
	"net/url"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// TokenService exchanges the app access token for a page access token.
// Tokens are fetched per run and never cached.
type TokenService struct {
	client *Client
}

// NewTokenService creates a TokenService.
func NewTokenService(client *Client) *TokenService {
	return &TokenService{client: client}
}

// GetPageAccessToken fetches the page token for creds.PageID. No retry is done here.
func (s *TokenService) GetPageAccessToken(ctx context.Context, creds model.PageCredentials) (string, error) {
	if creds.PageID == "" {
		return "", fmt.Errorf("%w: page id is required for a token exchange", apperrors.ErrConfiguration)
	}
	if creds.AppAccessToken == "" {
		return "", fmt.Errorf("%w: app access token is not configured", apperrors.ErrConfiguration)
	}

	params := url.Values{}
	params.Set("fields", "access_token")
	params.Set("transport", "cors")
	params.Set("access_token", creds.AppAccessToken)

	var resp struct {
		ID          string `json:"id"`
		AccessToken string `json:"access_token"`
	}
	endpoint := s.client.NodeURL(creds.BaseURL, creds.Version, creds.PageID)
	if err := s.client.GetJSON(ctx, "page_token", endpoint, params, &resp); err != nil {
		return "", fmt.Errorf("get page access token for %s: %w", creds.PageID, err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("get page access token for %s: %w", creds.PageID,
			&apperrors.APIError{Method: "GET", URL: endpoint, Params: redactParams(params), Body: "response carried no access_token"})
	}
	return resp.AccessToken, nil
}
