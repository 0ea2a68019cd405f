package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"recon-service/internal/models"
	"recon-service/internal/util"

	"go.uber.org/zap"
)

// CarrierClient lists fulfillment leads from the carrier platform
type CarrierClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// LeadDetail is the per-lead status payload
type LeadDetail struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	TrackingCode string    `json:"tracking_code"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewCarrierClient creates a carrier API client
func NewCarrierClient(baseURL string, timeout time.Duration) *CarrierClient {
	return &CarrierClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// ListLeads fetches the carrier's current lead working set. An empty
// countryFilter requests the unfiltered list.
func (c *CarrierClient) ListLeads(ctx context.Context, apiKey, countryFilter string) ([]models.CarrierLead, error) {
	q := url.Values{}
	if countryFilter != "" {
		q.Set("country", countryFilter)
	}

	endpoint := fmt.Sprintf("%s/api/leads", c.baseURL)
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build carrier request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("carrier API returned %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Leads []models.CarrierLead `json:"leads"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode carrier response: %w", err)
	}

	return envelope.Leads, nil
}

// ListLeadsWithFallback tries the unfiltered list first, then each configured
// country-filter spelling until one attempt returns leads. The upstream
// country taxonomy is inconsistent, so the filter variants come from
// configuration rather than code.
func (c *CarrierClient) ListLeadsWithFallback(ctx context.Context, apiKey string, countryFilters []string) ([]models.CarrierLead, error) {
	leads, err := c.ListLeads(ctx, apiKey, "")
	if err == nil && len(leads) > 0 {
		return leads, nil
	}
	if err != nil {
		c.logger.Warn("Unfiltered lead fetch failed, trying country filters", zap.Error(err))
	}

	var lastErr error = err
	for _, filter := range countryFilters {
		leads, err := c.ListLeads(ctx, apiKey, filter)
		if err != nil {
			lastErr = err
			continue
		}
		if len(leads) > 0 {
			return leads, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all lead fetch attempts failed: %w", lastErr)
	}
	return []models.CarrierLead{}, nil
}

// GetLeadStatus fetches the current detail for one lead
func (c *CarrierClient) GetLeadStatus(ctx context.Context, apiKey, leadID string) (*LeadDetail, error) {
	endpoint := fmt.Sprintf("%s/api/leads/%s", c.baseURL, url.PathEscape(leadID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build carrier request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carrier API returned %d for lead %s", resp.StatusCode, leadID)
	}

	var detail LeadDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("failed to decode lead detail: %w", err)
	}

	return &detail, nil
}
