package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"recon-service/internal/util"

	"go.uber.org/zap"
)

// StorefrontCredentials scope one tenant's API access
type StorefrontCredentials struct {
	ShopDomain  string
	AccessToken string
}

// OrderQuery bounds one page of the order listing
type OrderQuery struct {
	Limit        int
	Status       string
	CreatedAtMin time.Time
	CreatedAtMax time.Time
}

// StorefrontOrder is the source payload shape for one order
type StorefrontOrder struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	OrderNumber       int64           `json:"order_number"`
	Email             string          `json:"email"`
	CreatedAt         time.Time       `json:"created_at"`
	TotalPrice        string          `json:"total_price"`
	Currency          string          `json:"currency"`
	FinancialStatus   string          `json:"financial_status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	Customer          *Customer       `json:"customer"`
	ShippingAddress   *Address        `json:"shipping_address"`
	BillingAddress    *Address        `json:"billing_address"`
	LineItems         json.RawMessage `json:"line_items"`

	// Raw holds the verbatim payload for raw_source_data; set by the client,
	// not part of the wire shape.
	Raw json.RawMessage `json:"-"`
}

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type Address struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	City     string `json:"city"`
	Province string `json:"province"`
	Country  string `json:"country"`
	Zip      string `json:"zip"`
	Phone    string `json:"phone"`
}

// StorefrontClient lists orders from the storefront platform's admin API
type StorefrontClient struct {
	httpClient *http.Client
	apiVersion string
	logger     *zap.Logger
}

// NewStorefrontClient creates a storefront API client
func NewStorefrontClient(apiVersion string, timeout time.Duration) *StorefrontClient {
	return &StorefrontClient{
		httpClient: &http.Client{Timeout: timeout},
		apiVersion: apiVersion,
		logger:     util.GetLogger(),
	}
}

// ListOrders fetches one page of orders in the given creation-date window.
// Failures come back as errors, never panics; callers treat a failed page as
// the end of the walk for this pass.
func (c *StorefrontClient) ListOrders(ctx context.Context, creds StorefrontCredentials, query OrderQuery) ([]StorefrontOrder, error) {
	q := url.Values{}
	if query.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", query.Limit))
	}
	if query.Status != "" {
		q.Set("status", query.Status)
	}
	if !query.CreatedAtMin.IsZero() {
		q.Set("created_at_min", query.CreatedAtMin.UTC().Format(time.RFC3339))
	}
	if !query.CreatedAtMax.IsZero() {
		q.Set("created_at_max", query.CreatedAtMax.UTC().Format(time.RFC3339))
	}

	endpoint := fmt.Sprintf("https://%s/admin/api/%s/orders.json?%s",
		creds.ShopDomain, c.apiVersion, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build storefront request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storefront request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("storefront API returned %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Orders []json.RawMessage `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode storefront response: %w", err)
	}

	orders := make([]StorefrontOrder, 0, len(envelope.Orders))
	for _, raw := range envelope.Orders {
		var order StorefrontOrder
		if err := json.Unmarshal(raw, &order); err != nil {
			// One malformed order must not drop the whole page
			c.logger.Warn("Skipping malformed storefront order", zap.Error(err))
			continue
		}
		order.Raw = raw
		orders = append(orders, order)
	}

	return orders, nil
}

// CustomerName resolves the customer's display name using the fallback
// chain: shipping-address name, billing-address name, account profile name,
// then the order email.
func (o *StorefrontOrder) CustomerName() string {
	if o.ShippingAddress != nil && o.ShippingAddress.Name != "" {
		return o.ShippingAddress.Name
	}
	if o.BillingAddress != nil && o.BillingAddress.Name != "" {
		return o.BillingAddress.Name
	}
	if o.Customer != nil {
		full := o.Customer.FirstName
		if o.Customer.LastName != "" {
			if full != "" {
				full += " "
			}
			full += o.Customer.LastName
		}
		if full != "" {
			return full
		}
	}
	return o.Email
}

// CustomerPhone resolves the best available phone number
func (o *StorefrontOrder) CustomerPhone() string {
	if o.ShippingAddress != nil && o.ShippingAddress.Phone != "" {
		return o.ShippingAddress.Phone
	}
	if o.BillingAddress != nil && o.BillingAddress.Phone != "" {
		return o.BillingAddress.Phone
	}
	if o.Customer != nil {
		return o.Customer.Phone
	}
	return ""
}
