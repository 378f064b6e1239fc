package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carrier-engine/internal/features/carriers/domain"
	"carrier-engine/internal/features/carriers/ports"
)

// DelhiveryCode is the registry code of the Delhivery integration.
const DelhiveryCode = "delhivery"

const (
	delhiveryDefaultBaseURL = "https://track.delhivery.com"
	delhiveryDefaultDays    = 5
	maxResponseBytes        = 1 << 20
)

// DelhiveryAdapter talks to the Delhivery B2C API.
type DelhiveryAdapter struct {
	client         *http.Client
	baseURL        string
	token          string
	pickupLocation string
}

// NewDelhiveryAdapter builds an adapter from a credential. BaseURL falls back to the production host.
func NewDelhiveryAdapter(cred *domain.Credential, client *http.Client) *DelhiveryAdapter {
	baseURL := strings.TrimRight(cred.BaseURL, "/")
	if baseURL == "" {
		baseURL = delhiveryDefaultBaseURL
	}
	return &DelhiveryAdapter{
		client:         client,
		baseURL:        baseURL,
		token:          cred.APIKey,
		pickupLocation: cred.Config.PickupLocation(),
	}
}

// NewDelhiveryFactory adapts NewDelhiveryAdapter to the registry factory signature.
func NewDelhiveryFactory(cred *domain.Credential, client *http.Client) ports.CarrierAdapter {
	return NewDelhiveryAdapter(cred, client)
}

type delhiveryPinResponse struct {
	DeliveryCodes []struct {
		PostalCode struct {
			Pin     json.Number `json:"pin"`
			COD     string      `json:"cod"`
			PrePaid string      `json:"pre_paid"`
			MaxTime json.Number `json:"max_time"`
		} `json:"postal_code"`
	} `json:"delivery_codes"`
}

type delhiveryCreateResponse struct {
	Success  bool `json:"success"`
	Packages []struct {
		Waybill string   `json:"waybill"`
		Status  string   `json:"status"`
		Remarks []string `json:"remarks"`
	} `json:"packages"`
	RMK string `json:"rmk"`
}

type delhiveryCancelResponse struct {
	Status  bool   `json:"status"`
	Error   string `json:"error"`
	Remark  string `json:"remark"`
	Waybill string `json:"waybill"`
}

type delhiveryTrackResponse struct {
	ShipmentData []struct {
		Shipment struct {
			AWB    string `json:"AWB"`
			Status struct {
				Status         string `json:"Status"`
				StatusCode     string `json:"StatusCode"`
				StatusLocation string `json:"StatusLocation"`
				StatusDateTime string `json:"StatusDateTime"`
				Instructions   string `json:"Instructions"`
			} `json:"Status"`
			Scans []struct {
				ScanDetail struct {
					Scan            string `json:"Scan"`
					ScanType        string `json:"ScanType"`
					ScannedLocation string `json:"ScannedLocation"`
					ScanDateTime    string `json:"ScanDateTime"`
					Instructions    string `json:"Instructions"`
				} `json:"ScanDetail"`
			} `json:"Scans"`
		} `json:"Shipment"`
	} `json:"ShipmentData"`
}

// CheckServiceability queries the pincode directory for the delivery pincode.
func (a *DelhiveryAdapter) CheckServiceability(ctx context.Context, pickupPincode, deliveryPincode string, isCOD bool) (*domain.ServiceabilityResult, error) {
	endpoint := fmt.Sprintf("%s/c/api/pin-codes/json/?filter_codes=%s", a.baseURL, url.QueryEscape(deliveryPincode))

	status, body, err := a.do(ctx, http.MethodGet, endpoint, nil, "application/json")
	if err != nil {
		return nil, err
	}
	if !isSuccessStatus(status) {
		return &domain.ServiceabilityResult{Message: apiErrorMessage(status)}, nil
	}

	var resp delhiveryPinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode delhivery pincode response: %w", err)
	}

	if len(resp.DeliveryCodes) == 0 {
		return &domain.ServiceabilityResult{Message: "Pincode not serviceable"}, nil
	}

	info := resp.DeliveryCodes[0].PostalCode
	days := delhiveryDefaultDays
	if n, err := strconv.Atoi(info.MaxTime.String()); err == nil && n > 0 {
		days = n
	}

	return &domain.ServiceabilityResult{
		Serviceable:           true,
		CODAvailable:          strings.EqualFold(info.COD, "Y"),
		PrepaidAvailable:      strings.EqualFold(info.PrePaid, "Y"),
		EstimatedDeliveryDays: days,
		Message:               "Pincode is serviceable",
	}, nil
}

// CreateShipment manifests one package and returns its waybill.
func (a *DelhiveryAdapter) CreateShipment(ctx context.Context, req domain.ShipmentRequest) (*domain.BookingResult, error) {
	pickupName := a.pickupLocation
	if pickupName == "" {
		pickupName = req.PickupName
	}

	codAmount := "0"
	paymentMode := "Prepaid"
	if req.IsCOD() {
		paymentMode = "COD"
		codAmount = formatAmount(req.CODAmount)
	}

	shipment := map[string]string{
		"name":            req.CustomerName,
		"add":             strings.TrimSpace(req.AddressLine1 + " " + req.AddressLine2),
		"pin":             req.Pincode,
		"city":            req.City,
		"state":           req.State,
		"country":         countryOrDefault(req.Country),
		"phone":           req.CustomerPhone,
		"order":           req.OrderNumber,
		"payment_mode":    paymentMode,
		"return_pin":      req.PickupPincode,
		"return_city":     req.PickupCity,
		"return_phone":    req.PickupPhone,
		"return_add":      req.PickupAddress,
		"return_state":    req.PickupState,
		"return_country":  "India",
		"return_name":     pickupName,
		"products_desc":   descriptionOrDefault(req.ItemDescription),
		"cod_amount":      codAmount,
		"total_amount":    formatAmount(req.TotalAmount),
		"seller_add":      req.PickupAddress,
		"seller_name":     pickupName,
		"quantity":        strconv.Itoa(max(req.ItemCount, 1)),
		"waybill":         "",
		"shipment_width":  formatAmount(req.BreadthCm),
		"shipment_height": formatAmount(req.HeightCm),
		"weight":          formatAmount(req.WeightKg),
		"shipping_mode":   "Surface",
		"address_type":    "home",
	}

	data, err := json.Marshal(map[string]any{
		"shipments":       []map[string]string{shipment},
		"pickup_location": map[string]string{"name": pickupName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode delhivery shipment: %w", err)
	}

	form := url.Values{}
	form.Set("format", "json")
	form.Set("data", string(data))

	status, body, err := a.do(ctx, http.MethodPost, a.baseURL+"/api/cmu/create.json",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}
	if !isSuccessStatus(status) {
		return &domain.BookingResult{Message: apiErrorMessage(status), RawResponse: rawOrQuoted(body)}, nil
	}

	var resp delhiveryCreateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode delhivery create response: %w", err)
	}

	if len(resp.Packages) == 0 {
		msg := "No packages returned"
		if resp.RMK != "" {
			msg = resp.RMK
		}
		return &domain.BookingResult{Message: msg, RawResponse: body}, nil
	}

	pkg := resp.Packages[0]
	if pkg.Waybill == "" {
		msg := "Unknown error"
		if len(pkg.Remarks) > 0 {
			msg = strings.Join(pkg.Remarks, "; ")
		}
		return &domain.BookingResult{Message: msg, RawResponse: body}, nil
	}

	return &domain.BookingResult{
		Success:        true,
		AWBNumber:      pkg.Waybill,
		TrackingNumber: pkg.Waybill,
		LabelURL:       fmt.Sprintf("%s/api/p/packing_slip?wbns=%s", a.baseURL, url.QueryEscape(pkg.Waybill)),
		Message:        "Shipment created successfully",
		RawResponse:    body,
	}, nil
}

// CancelShipment requests cancellation of a waybill.
func (a *DelhiveryAdapter) CancelShipment(ctx context.Context, awbNumber string) (*domain.CancellationResult, error) {
	payload, err := json.Marshal(map[string]string{
		"waybill":      awbNumber,
		"cancellation": "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode delhivery cancel request: %w", err)
	}

	status, body, err := a.do(ctx, http.MethodPost, a.baseURL+"/api/p/edit", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	if !isSuccessStatus(status) {
		return &domain.CancellationResult{Message: apiErrorMessage(status)}, nil
	}

	var resp delhiveryCancelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode delhivery cancel response: %w", err)
	}

	if !resp.Status {
		msg := resp.Error
		if msg == "" {
			msg = "Cancellation failed"
		}
		return &domain.CancellationResult{Message: msg}, nil
	}

	return &domain.CancellationResult{Success: true, Message: "Shipment cancelled"}, nil
}

// GetTrackingStatus fetches the package status and scan history.
func (a *DelhiveryAdapter) GetTrackingStatus(ctx context.Context, awbNumber string) (*domain.TrackingResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/packages/json/?waybill=%s", a.baseURL, url.QueryEscape(awbNumber))

	status, body, err := a.do(ctx, http.MethodGet, endpoint, nil, "application/json")
	if err != nil {
		return nil, err
	}
	if !isSuccessStatus(status) {
		return &domain.TrackingResult{Message: apiErrorMessage(status), Events: []domain.TrackingEvent{}}, nil
	}

	var resp delhiveryTrackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode delhivery tracking response: %w", err)
	}

	if len(resp.ShipmentData) == 0 {
		return &domain.TrackingResult{
			Message: fmt.Sprintf("No tracking data for %s", awbNumber),
			Events:  []domain.TrackingEvent{},
			RawData: body,
		}, nil
	}

	shipment := resp.ShipmentData[0].Shipment
	events := make([]domain.TrackingEvent, 0, len(shipment.Scans))
	for _, scan := range shipment.Scans {
		d := scan.ScanDetail
		events = append(events, domain.TrackingEvent{
			Status:      d.Scan,
			Location:    d.ScannedLocation,
			Timestamp:   parseDelhiveryTime(d.ScanDateTime),
			Description: d.Instructions,
		})
	}

	currentStatus := shipment.Status.Status
	if currentStatus == "" {
		currentStatus = "Unknown"
	}

	return &domain.TrackingResult{
		Success:    true,
		Status:     currentStatus,
		StatusCode: shipment.Status.StatusCode,
		Location:   shipment.Status.StatusLocation,
		Events:     events,
		Message:    "Tracking retrieved",
		RawData:    body,
	}, nil
}

// do sends one request and returns the status code and body. Only transport failures are errors.
func (a *DelhiveryAdapter) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+a.token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

var delhiveryTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseDelhiveryTime returns the zero time when the timestamp is not recognised.
func parseDelhiveryTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range delhiveryTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

func apiErrorMessage(code int) string {
	return fmt.Sprintf("API error: %d", code)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func countryOrDefault(country string) string {
	if country == "" {
		return "India"
	}
	return country
}

func descriptionOrDefault(desc string) string {
	if desc == "" {
		return "Products"
	}
	return desc
}

// rawOrQuoted keeps non-JSON bodies storable as a JSON string.
func rawOrQuoted(body []byte) json.RawMessage {
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
