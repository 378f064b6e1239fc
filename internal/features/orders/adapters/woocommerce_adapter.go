package adapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carrier-engine/internal/core/config"
	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/orders/domain"

	"go.uber.org/zap"
)

// WooCommerceChannel is the channel code given to orders read from WooCommerce.
const WooCommerceChannel = "woocommerce"

// Order meta keys written back after a booking (WooCommerce Shipment Tracking conventions).
const (
	metaTrackingNumber   = "_tracking_number"
	metaTrackingProvider = "_tracking_provider"
	metaTrackingURL      = "_tracking_url"
)

// WooCommerceAdapter implements ports.OrderSource using the WooCommerce REST API.
type WooCommerceAdapter struct {
	// client is the HTTP client used for API requests.
	client *http.Client
	// config holds the WooCommerce connection details.
	config config.WooCommerceConfig
}

// NewWooCommerceAdapter creates a new instance of WooCommerceAdapter.
func NewWooCommerceAdapter(cfg config.WooCommerceConfig, client *http.Client) *WooCommerceAdapter {
	return &WooCommerceAdapter{
		client: client,
		config: cfg,
	}
}

// GetOrder fetches an order from WooCommerce and maps it to the domain snapshot.
func (a *WooCommerceAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	url := fmt.Sprintf("%s/wp-json/wc/v3/orders/%s", a.config.URL, orderID)

	resp, err := a.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("woocommerce API returned status: %d", resp.StatusCode)
	}

	var wcOrder woocommerceOrder
	if err := json.NewDecoder(resp.Body).Decode(&wcOrder); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return mapToDomain(wcOrder), nil
}

// AssignShipment writes the carrier and AWB into the order meta data.
func (a *WooCommerceAdapter) AssignShipment(ctx context.Context, orderID string, info domain.ShippingInfo) error {
	payload, err := json.Marshal(map[string]any{
		"meta_data": []wcMetaData{
			{Key: metaTrackingNumber, Value: info.AWBNumber},
			{Key: metaTrackingProvider, Value: info.CarrierCode},
			{Key: metaTrackingURL, Value: info.TrackingURL},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode order update: %w", err)
	}

	url := fmt.Sprintf("%s/wp-json/wc/v3/orders/%s", a.config.URL, orderID)
	resp, err := a.do(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("woocommerce order update returned status: %d", resp.StatusCode)
	}
	return nil
}

// HealthCheck verifies that the WooCommerce API is reachable and credentials are valid.
func (a *WooCommerceAdapter) HealthCheck(ctx context.Context) error {
	// Check orders endpoint with per_page=1 to verify auth and reachability
	url := fmt.Sprintf("%s/wp-json/wc/v3/orders?per_page=1", a.config.URL)

	resp, err := a.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}

	return nil
}

func (a *WooCommerceAdapter) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Basic Auth using optimized string building
	authVal := make([]byte, 0, len(a.config.ConsumerKey)+len(a.config.ConsumerSecret)+1)
	authVal = fmt.Appendf(authVal, "%s:%s", a.config.ConsumerKey, a.config.ConsumerSecret)
	req.Header.Add("Authorization", "Basic "+base64.StdEncoding.EncodeToString(authVal))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	return resp, nil
}

// mapToDomain converts a raw WooCommerce order into the domain snapshot.
func mapToDomain(wc woocommerceOrder) *domain.Order {
	total := parseAmount(wc.Total)

	order := &domain.Order{
		ID:          strconv.Itoa(wc.ID),
		OrderNumber: wc.Number,
		Channel:     WooCommerceChannel,
		PaymentType: mapPaymentType(wc.PaymentMethod),
		TotalAmount: total,
		Customer: domain.Customer{
			Name:  strings.TrimSpace(wc.Shipping.FirstName + " " + wc.Shipping.LastName),
			Phone: firstNonEmpty(wc.Shipping.Phone, wc.Billing.Phone),
			Email: wc.Billing.Email,
		},
		Address: domain.Address{
			Line1:   wc.Shipping.Address1,
			Line2:   wc.Shipping.Address2,
			City:    wc.Shipping.City,
			State:   wc.Shipping.State,
			Pincode: wc.Shipping.Postcode,
			Country: wc.Shipping.Country,
		},
		Items:     mapItems(wc.LineItems),
		CreatedAt: time.Time(wc.DateCreated),
	}

	if order.OrderNumber == "" {
		order.OrderNumber = order.ID
	}
	if order.Customer.Name == "" {
		order.Customer.Name = strings.TrimSpace(wc.Billing.FirstName + " " + wc.Billing.LastName)
	}
	if order.IsCOD() {
		order.CODAmount = total
	}

	for _, meta := range wc.MetaData {
		if meta.Key == "_weight" || meta.Key == "weight" {
			if w := parseAmount(fmt.Sprint(meta.Value)); w > 0 {
				order.WeightKg = w
			}
		}
	}

	return order
}

// mapPaymentType treats the WooCommerce "cod" gateway as cash on delivery and everything else as prepaid.
func mapPaymentType(method string) domain.PaymentType {
	if strings.EqualFold(method, "cod") {
		return domain.PaymentCOD
	}
	return domain.PaymentPrepaid
}

// mapItems converts WooCommerce line items to domain OrderItems.
func mapItems(wcItems []wcLineItem) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(wcItems))
	for _, item := range wcItems {
		items = append(items, domain.OrderItem{
			Quantity: item.Quantity,
			SKU:      item.Sku,
			Name:     item.Name,
		})
	}
	return items
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// internal structs for mapping

// woocommerceOrder represents the JSON structure of an order from WooCommerce API.
type woocommerceOrder struct {
	ID            int          `json:"id"`
	Number        string       `json:"number"`
	Status        string       `json:"status"`
	Total         string       `json:"total"`
	PaymentMethod string       `json:"payment_method"`
	DateCreated   wcTime       `json:"date_created"`
	Billing       wcAddress    `json:"billing"`
	Shipping      wcAddress    `json:"shipping"`
	LineItems     []wcLineItem `json:"line_items"`
	MetaData      []wcMetaData `json:"meta_data"`
}

// wcMetaData represents a key-value pair in WooCommerce metadata.
type wcMetaData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// wcAddress holds a billing or shipping address.
type wcAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// wcLineItem represents a product in the WooCommerce order.
type wcLineItem struct {
	Name     string `json:"name"`
	Sku      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// wcTime is a custom helper struct to handle WooCommerce's date format.
type wcTime time.Time

// UnmarshalJSON parses the custom date format used by WooCommerce.
func (t *wcTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	// WooCommerce usually returns ISO8601 "2018-12-19T14:48:25"
	if s == "null" || s == "" {
		*t = wcTime(time.Time{})
		return nil
	}
	parsed, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		logger.Get().Warn("Failed to parse date", zap.String("date", s), zap.Error(err))
		return nil
	}
	*t = wcTime(parsed)
	return nil
}
