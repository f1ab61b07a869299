package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GraphConfig{BaseURL: srv.URL, Version: "v21.0", Timeout: 2 * time.Second}), srv
}

func TestTokenService_GetPageAccessToken(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v19.0/123", r.URL.Path)
		assert.Equal(t, "access_token", r.URL.Query().Get("fields"))
		assert.Equal(t, "cors", r.URL.Query().Get("transport"))
		assert.Equal(t, "app-secret", r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"access_token":"page-token","id":"123"}`))
	}))

	token, err := NewTokenService(client).GetPageAccessToken(context.Background(), model.PageCredentials{
		BaseURL: srv.URL, Version: "v19.0", PageID: "123", AppAccessToken: "app-secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "page-token", token)
}

func TestTokenService_APIErrorIsDiagnosableWithoutLeakingToken(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190,"fbtrace_id":"abc"}}`))
	}))

	_, err := NewTokenService(client).GetPageAccessToken(context.Background(), model.PageCredentials{
		BaseURL: srv.URL, Version: "v21.0", PageID: "123", AppAccessToken: "app-secret",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsAPIError(err))
	assert.False(t, apperrors.IsTransportError(err))
	msg := err.Error()
	assert.Contains(t, msg, srv.URL+"/v21.0/123")
	assert.Contains(t, msg, "access_token=[redacted]")
	assert.Contains(t, msg, "fields=access_token")
	assert.Contains(t, msg, "code: 190")
	assert.Contains(t, msg, "message: Invalid OAuth access token.")
	assert.Contains(t, msg, "fbtrace_id: abc")
	assert.NotContains(t, msg, "app-secret")

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestTokenService_MissingConfiguration(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := NewTokenService(client).GetPageAccessToken(context.Background(), model.PageCredentials{PageID: "1"})
	assert.True(t, apperrors.IsConfigurationError(err))

	_, err = NewTokenService(client).GetPageAccessToken(context.Background(), model.PageCredentials{AppAccessToken: "x"})
	assert.True(t, apperrors.IsConfigurationError(err))
}

func TestClient_TimeoutIsClassified(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(config.GraphConfig{BaseURL: srv.URL, Version: "v21.0", Timeout: 50 * time.Millisecond})
	_, err := client.Get(context.Background(), "test", srv.URL+"/slow", nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsTimeoutError(err), err.Error())
	assert.False(t, apperrors.IsNetworkError(err))
}

func TestClient_NetworkErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := NewClient(config.GraphConfig{BaseURL: addr, Version: "v21.0", Timeout: time.Second})
	_, err := client.Get(context.Background(), "test", addr+"/v21.0/1?access_token=secret", nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsNetworkError(err), err.Error())
	assert.NotContains(t, err.Error(), "secret")
}

func TestClient_NonJSONBodyIsAPIError(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>Bad Gateway</html>"))
	}))

	_, err := client.Get(context.Background(), "test", srv.URL+"/x", nil)

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Bad Gateway")
}

func TestClient_CanceledContextIsNotTransportError(t *testing.T) {
	client, srv := newTestClient(t, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "test", srv.URL+"/x", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperrors.IsTransportError(err))
}

func TestLeadFetcher_FetchLeadsAndNext(t *testing.T) {
	var srvURL string
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v21.0/F1/leads":
			assert.Equal(t, config.DefaultLeadFields, r.URL.Query().Get("fields"))
			assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
			_, _ = w.Write(model.NewLeadPageJSON([]model.RawLead{{ID: "L1"}}, srvURL+"/v21.0/F1/leads?after=c1&access_token=page-token"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	srvURL = srv.URL

	fetcher := NewLeadFetcher(client, "", "")
	page, err := fetcher.FetchLeads(context.Background(), "page-token", "F1")
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "L1", page.Data[0].ID)
	assert.Contains(t, page.NextCursor(), "after=c1")
}

func TestLeadFetcher_FetchNextKeepsQueryVerbatim(t *testing.T) {
	const rawQuery = "limit=25&after=QVFIUjZA%2Bb2x%3D&access_token=page-token&fields=id,created_time"
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/F1/leads", r.URL.Path)
		assert.Equal(t, rawQuery, r.URL.RawQuery)
		_, _ = w.Write(model.NewLeadPageJSON([]model.RawLead{{ID: "L2"}}, ""))
	}))

	page, err := NewLeadFetcher(client, "", "").FetchNext(context.Background(), srv.URL+"/v21.0/F1/leads?"+rawQuery)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "L2", page.Data[0].ID)
}

func TestLeadFetcher_FetchLeadForms(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/P1/leadgen_forms", r.URL.Path)
		assert.Equal(t, config.DefaultFormFields, r.URL.Query().Get("fields"))
		forms := model.FormPageList{Data: []model.LeadForm{model.NewLeadForm(&model.LeadForm{ID: "F1"}), model.NewLeadForm(&model.LeadForm{ID: "F2"})}}
		_ = json.NewEncoder(w).Encode(forms)
	}))

	forms, err := NewLeadFetcher(client, "", "").FetchLeadForms(context.Background(), "tok", "P1")
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, "F1", forms[0].ID)
	assert.Len(t, forms[1].Questions, 4)
}

func TestPixelClient_SendEvents(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v21.0/PX1/events", r.URL.Path)
		assert.Equal(t, "pixel-token", r.URL.Query().Get("access_token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload model.EventPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Len(t, payload.Data, 1)
		assert.Equal(t, "L1", payload.Data[0].UserData.LeadID)

		_, _ = fmt.Fprint(w, `{"events_received":1,"fbtrace_id":"x"}`)
	}))

	resp, err := NewPixelClient(client).SendEvents(context.Background(), "PX1", "pixel-token", model.EventPayload{
		Data: []model.ConversionEvent{{EventName: "Converted", UserData: model.EventUserData{LeadID: "L1"}}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"events_received":1,"fbtrace_id":"x"}`, string(resp))
}

func TestClient_NodeURL(t *testing.T) {
	client := NewClient(config.GraphConfig{BaseURL: "https://graph.facebook.com/", Version: "v21.0"})
	assert.Equal(t, "https://graph.facebook.com/v21.0/1/leads", client.NodeURL("", "", "1", "leads"))
	assert.Equal(t, "https://other.test/v18.0/1", client.NodeURL("https://other.test", "v18.0", "1"))
}
