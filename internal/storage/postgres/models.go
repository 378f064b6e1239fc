package postgres

import (
	"encoding/json"
	"time"

	carrierdomain "carrier-engine/internal/features/carriers/domain"
	orderdomain "carrier-engine/internal/features/orders/domain"
	ruledomain "carrier-engine/internal/features/rules/domain"
	settingsdomain "carrier-engine/internal/features/settings/domain"
	shipmentdomain "carrier-engine/internal/features/shipments/domain"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CarrierModel is the carriers table.
type CarrierModel struct {
	ID                  string `gorm:"type:uuid;primaryKey"`
	Name                string `gorm:"type:varchar(100);not null"`
	Code                string `gorm:"type:varchar(50);not null;uniqueIndex"`
	TrackingURLTemplate string `gorm:"type:text"`
	SupportsCOD         bool
	SupportsPrepaid     bool
	SupportsReverse     bool
	Status              string `gorm:"type:varchar(20);not null;index"`
	Priority            int    `gorm:"not null;default:0"`

	SuccessRate        float64 `gorm:"type:numeric(5,2)"`
	AvgDeliveryDays    float64 `gorm:"type:numeric(5,2)"`
	SLAAdherenceRate   float64 `gorm:"column:sla_adherence_rate;type:numeric(5,2)"`
	TotalAPICalls      int64   `gorm:"column:total_api_calls;not null;default:0"`
	SuccessfulAPICalls int64   `gorm:"column:successful_api_calls;not null;default:0"`
	FailedAPICalls     int64   `gorm:"column:failed_api_calls;not null;default:0"`
	LastAPICheck       *time.Time
}

func (CarrierModel) TableName() string { return "carriers" }

func carrierFromDomain(c *carrierdomain.Carrier) CarrierModel {
	return CarrierModel{
		ID:                  c.ID,
		Name:                c.Name,
		Code:                c.Code,
		TrackingURLTemplate: c.TrackingURLTemplate,
		SupportsCOD:         c.SupportsCOD,
		SupportsPrepaid:     c.SupportsPrepaid,
		SupportsReverse:     c.SupportsReverse,
		Status:              string(c.Status),
		Priority:            c.Priority,
		SuccessRate:         c.Metrics.SuccessRate,
		AvgDeliveryDays:     c.Metrics.AvgDeliveryDays,
		SLAAdherenceRate:    c.Metrics.SLAAdherenceRate,
		TotalAPICalls:       c.Metrics.TotalAPICalls,
		SuccessfulAPICalls:  c.Metrics.SuccessfulAPICalls,
		FailedAPICalls:      c.Metrics.FailedAPICalls,
		LastAPICheck:        c.Metrics.LastAPICheck,
	}
}

func (m CarrierModel) toDomain() carrierdomain.Carrier {
	return carrierdomain.Carrier{
		ID:                  m.ID,
		Name:                m.Name,
		Code:                m.Code,
		TrackingURLTemplate: m.TrackingURLTemplate,
		SupportsCOD:         m.SupportsCOD,
		SupportsPrepaid:     m.SupportsPrepaid,
		SupportsReverse:     m.SupportsReverse,
		Status:              carrierdomain.CarrierStatus(m.Status),
		Priority:            m.Priority,
		Metrics: carrierdomain.CarrierMetrics{
			SuccessRate:        m.SuccessRate,
			AvgDeliveryDays:    m.AvgDeliveryDays,
			SLAAdherenceRate:   m.SLAAdherenceRate,
			TotalAPICalls:      m.TotalAPICalls,
			SuccessfulAPICalls: m.SuccessfulAPICalls,
			FailedAPICalls:     m.FailedAPICalls,
			LastAPICheck:       m.LastAPICheck,
		},
	}
}

// CredentialModel is the carrier_credentials table. At most one active row per
// (carrier, environment) is enforced by a partial unique index.
type CredentialModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	CarrierID     string `gorm:"type:uuid;not null;index"`
	Environment   string `gorm:"type:varchar(20);not null"`
	APIKey        string `gorm:"column:api_key;type:text"`
	APISecret     string `gorm:"column:api_secret;type:text"`
	ClientID      string `gorm:"type:text"`
	ClientSecret  string `gorm:"type:text"`
	AccessToken   string `gorm:"type:text"`
	BaseURL       string `gorm:"column:base_url;type:text"`
	WebhookSecret string `gorm:"type:text"`

	Config   datatypes.JSONType[map[string]string] `gorm:"type:jsonb"`
	IsActive bool                                  `gorm:"not null;default:true"`
}

func (CredentialModel) TableName() string { return "carrier_credentials" }

func credentialFromDomain(c *carrierdomain.Credential) CredentialModel {
	return CredentialModel{
		ID:            c.ID,
		CarrierID:     c.CarrierID,
		Environment:   string(c.Environment),
		APIKey:        c.APIKey,
		APISecret:     c.APISecret,
		ClientID:      c.ClientID,
		ClientSecret:  c.ClientSecret,
		AccessToken:   c.AccessToken,
		BaseURL:       c.BaseURL,
		WebhookSecret: c.WebhookSecret,
		Config:        datatypes.NewJSONType(map[string]string(c.Config)),
		IsActive:      c.IsActive,
	}
}

func (m CredentialModel) toDomain() carrierdomain.Credential {
	return carrierdomain.Credential{
		ID:            m.ID,
		CarrierID:     m.CarrierID,
		Environment:   carrierdomain.Environment(m.Environment),
		APIKey:        m.APIKey,
		APISecret:     m.APISecret,
		ClientID:      m.ClientID,
		ClientSecret:  m.ClientSecret,
		AccessToken:   m.AccessToken,
		BaseURL:       m.BaseURL,
		WebhookSecret: m.WebhookSecret,
		Config:        carrierdomain.CarrierConfig(m.Config.Data()),
		IsActive:      m.IsActive,
	}
}

// APILogModel is the append-only carrier_api_logs table.
type APILogModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	CarrierID      string `gorm:"type:uuid;not null;index:idx_api_logs_carrier_created,priority:1"`
	CarrierCode    string `gorm:"type:varchar(50)"`
	CallType       string `gorm:"type:varchar(30);not null"`
	RequestURL     string `gorm:"type:text"`
	RequestMethod  string `gorm:"type:varchar(10)"`
	RequestBody    string `gorm:"type:text"`
	ResponseStatus int
	ResponseBody   string `gorm:"type:text"`
	ResponseTimeMs int64
	IsSuccess      bool
	ErrorMessage   string    `gorm:"type:text"`
	ReferenceID    string    `gorm:"type:varchar(100);index"`
	CreatedAt      time.Time `gorm:"not null;index:idx_api_logs_carrier_created,priority:2,sort:desc"`

	RequestHeaders datatypes.JSONType[map[string]string] `gorm:"type:jsonb"`
}

func (APILogModel) TableName() string { return "carrier_api_logs" }

func apiLogFromDomain(l *carrierdomain.APILog) APILogModel {
	return APILogModel{
		ID:             l.ID,
		CarrierID:      l.CarrierID,
		CarrierCode:    l.CarrierCode,
		CallType:       string(l.CallType),
		RequestURL:     l.RequestURL,
		RequestMethod:  l.RequestMethod,
		RequestHeaders: datatypes.NewJSONType(l.RequestHeaders),
		RequestBody:    l.RequestBody,
		ResponseStatus: l.ResponseStatus,
		ResponseBody:   l.ResponseBody,
		ResponseTimeMs: l.ResponseTimeMs,
		IsSuccess:      l.IsSuccess,
		ErrorMessage:   l.ErrorMessage,
		ReferenceID:    l.ReferenceID,
		CreatedAt:      l.CreatedAt,
	}
}

func (m APILogModel) toDomain() carrierdomain.APILog {
	return carrierdomain.APILog{
		ID:             m.ID,
		CarrierID:      m.CarrierID,
		CarrierCode:    m.CarrierCode,
		CallType:       carrierdomain.APICallType(m.CallType),
		RequestURL:     m.RequestURL,
		RequestMethod:  m.RequestMethod,
		RequestHeaders: m.RequestHeaders.Data(),
		RequestBody:    m.RequestBody,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   m.ResponseBody,
		ResponseTimeMs: m.ResponseTimeMs,
		IsSuccess:      m.IsSuccess,
		ErrorMessage:   m.ErrorMessage,
		ReferenceID:    m.ReferenceID,
		CreatedAt:      m.CreatedAt,
	}
}

// ZoneModel is the carrier_zones table.
type ZoneModel struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	CarrierID string         `gorm:"type:uuid;not null;index"`
	Name      string         `gorm:"type:varchar(100)"`
	Code      string         `gorm:"type:varchar(50);not null"`
	States    pq.StringArray `gorm:"type:text[]"`
	Pincodes  pq.StringArray `gorm:"type:text[]"`
}

func (ZoneModel) TableName() string { return "carrier_zones" }

func (m ZoneModel) toDomain() carrierdomain.Zone {
	return carrierdomain.Zone{
		ID:        m.ID,
		CarrierID: m.CarrierID,
		Name:      m.Name,
		Code:      m.Code,
		States:    []string(m.States),
		Pincodes:  []string(m.Pincodes),
	}
}

// RateModel is the carrier_rates table.
type RateModel struct {
	ID                   string          `gorm:"type:uuid;primaryKey"`
	CarrierID            string          `gorm:"type:uuid;not null;index"`
	ZoneCode             string          `gorm:"type:varchar(50)"`
	MinWeight            decimal.Decimal `gorm:"type:numeric(10,3);not null"`
	MaxWeight            decimal.Decimal `gorm:"type:numeric(10,3);not null"`
	BaseRate             decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	PerKgRate            decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CODCharge            decimal.Decimal `gorm:"column:cod_charge;type:numeric(10,2);not null"`
	FuelSurchargePercent decimal.Decimal `gorm:"type:numeric(5,2);not null"`
}

func (RateModel) TableName() string { return "carrier_rates" }

func (m RateModel) toDomain() carrierdomain.Rate {
	return carrierdomain.Rate{
		ID:                   m.ID,
		CarrierID:            m.CarrierID,
		ZoneCode:             m.ZoneCode,
		MinWeight:            m.MinWeight,
		MaxWeight:            m.MaxWeight,
		BaseRate:             m.BaseRate,
		PerKgRate:            m.PerKgRate,
		CODCharge:            m.CODCharge,
		FuelSurchargePercent: m.FuelSurchargePercent,
	}
}

// PincodeRuleModel is the pincode_rules table, unique on (pincode, carrier, rule type).
type PincodeRuleModel struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Pincode         string `gorm:"type:varchar(10);not null;uniqueIndex:uniq_pincode_rule,priority:1"`
	CarrierID       string `gorm:"type:uuid;not null;uniqueIndex:uniq_pincode_rule,priority:2"`
	RuleType        string `gorm:"type:varchar(20);not null;uniqueIndex:uniq_pincode_rule,priority:3"`
	Priority        int    `gorm:"not null;default:0"`
	SupportsCOD     bool
	SupportsPrepaid bool
	DeliveryDays    int
	Notes           string `gorm:"type:text"`
	IsActive        bool   `gorm:"not null;default:true"`
}

func (PincodeRuleModel) TableName() string { return "pincode_rules" }

func pincodeRuleFromDomain(r *ruledomain.PincodeRule) PincodeRuleModel {
	return PincodeRuleModel{
		ID:              r.ID,
		Pincode:         r.Pincode,
		CarrierID:       r.CarrierID,
		RuleType:        r.RuleType,
		Priority:        r.Priority,
		SupportsCOD:     r.SupportsCOD,
		SupportsPrepaid: r.SupportsPrepaid,
		DeliveryDays:    r.DeliveryDays,
		Notes:           r.Notes,
		IsActive:        r.IsActive,
	}
}

func (m PincodeRuleModel) toDomain() ruledomain.PincodeRule {
	return ruledomain.PincodeRule{
		ID:              m.ID,
		Pincode:         m.Pincode,
		CarrierID:       m.CarrierID,
		Priority:        m.Priority,
		SupportsCOD:     m.SupportsCOD,
		SupportsPrepaid: m.SupportsPrepaid,
		DeliveryDays:    m.DeliveryDays,
		RuleType:        m.RuleType,
		Notes:           m.Notes,
		IsActive:        m.IsActive,
	}
}

// ChannelRuleModel is the channel_shipping_rules table.
type ChannelRuleModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Channel     string `gorm:"type:varchar(50);not null;index"`
	PaymentType string `gorm:"type:varchar(10);not null"`
	CarrierID   string `gorm:"type:uuid;not null"`
	Priority    int    `gorm:"not null;default:0"`
	IsActive    bool   `gorm:"not null;default:true"`
}

func (ChannelRuleModel) TableName() string { return "channel_shipping_rules" }

// ShippingRuleModel is the shipping_rules table. Value keeps the JSON form of
// ruledomain.RuleValue so list operands survive the round trip.
type ShippingRuleModel struct {
	ID                string         `gorm:"type:uuid;primaryKey"`
	Name              string         `gorm:"type:varchar(100);not null"`
	Field             string         `gorm:"type:varchar(50);not null"`
	Operator          string         `gorm:"type:varchar(20);not null"`
	Value             datatypes.JSON `gorm:"type:jsonb;not null"`
	AssignedCarrierID string         `gorm:"type:uuid;not null"`
	FallbackCarrierID *string        `gorm:"type:uuid"`
	Priority          int            `gorm:"not null;default:0"`
	Enabled           bool           `gorm:"not null;default:true"`
}

func (ShippingRuleModel) TableName() string { return "shipping_rules" }

func shippingRuleFromDomain(r *ruledomain.ShippingRule) (ShippingRuleModel, error) {
	value, err := json.Marshal(r.Value)
	if err != nil {
		return ShippingRuleModel{}, err
	}
	return ShippingRuleModel{
		ID:                r.ID,
		Name:              r.Name,
		Field:             r.Field,
		Operator:          string(r.Operator),
		Value:             datatypes.JSON(value),
		AssignedCarrierID: r.AssignedCarrierID,
		FallbackCarrierID: nullable(r.FallbackCarrierID),
		Priority:          r.Priority,
		Enabled:           r.Enabled,
	}, nil
}

func (m ShippingRuleModel) toDomain() (ruledomain.ShippingRule, error) {
	var value ruledomain.RuleValue
	if err := json.Unmarshal(m.Value, &value); err != nil {
		return ruledomain.ShippingRule{}, err
	}
	rule := ruledomain.ShippingRule{
		ID:                m.ID,
		Name:              m.Name,
		Field:             m.Field,
		Operator:          ruledomain.Operator(m.Operator),
		Value:             value,
		AssignedCarrierID: m.AssignedCarrierID,
		Priority:          m.Priority,
		Enabled:           m.Enabled,
	}
	if m.FallbackCarrierID != nil {
		rule.FallbackCarrierID = *m.FallbackCarrierID
	}
	return rule, nil
}

// OrderModel is the local orders table used when ORDER_SOURCE=store.
type OrderModel struct {
	ID          string `gorm:"type:varchar(64);primaryKey"`
	OrderNumber string `gorm:"type:varchar(64);not null;index"`
	Channel     string `gorm:"type:varchar(50)"`
	PaymentType string `gorm:"type:varchar(10);not null"`

	TotalAmount float64 `gorm:"type:numeric(12,2)"`
	CODAmount   float64 `gorm:"column:cod_amount;type:numeric(12,2)"`
	WeightKg    float64 `gorm:"type:numeric(10,3)"`
	LengthCm    float64 `gorm:"type:numeric(10,2)"`
	BreadthCm   float64 `gorm:"type:numeric(10,2)"`
	HeightCm    float64 `gorm:"type:numeric(10,2)"`

	Customer datatypes.JSONType[orderdomain.Customer]    `gorm:"type:jsonb"`
	Address  datatypes.JSONType[orderdomain.Address]     `gorm:"type:jsonb"`
	Items    datatypes.JSONType[[]orderdomain.OrderItem] `gorm:"type:jsonb"`

	ShipmentID  *string `gorm:"type:uuid"`
	CarrierCode string  `gorm:"type:varchar(50)"`
	AWBNumber   string  `gorm:"column:awb_number;type:varchar(100)"`
	TrackingURL string  `gorm:"type:text"`
	AssignedAt  *time.Time

	CreatedAt time.Time
}

func (OrderModel) TableName() string { return "orders" }

func orderFromDomain(o *orderdomain.Order) OrderModel {
	return OrderModel{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Channel:     o.Channel,
		PaymentType: string(o.PaymentType),
		TotalAmount: o.TotalAmount,
		CODAmount:   o.CODAmount,
		WeightKg:    o.WeightKg,
		LengthCm:    o.LengthCm,
		BreadthCm:   o.BreadthCm,
		HeightCm:    o.HeightCm,
		Customer:    datatypes.NewJSONType(o.Customer),
		Address:     datatypes.NewJSONType(o.Address),
		Items:       datatypes.NewJSONType(o.Items),
		ShipmentID:  nullable(o.Shipping.ShipmentID),
		CarrierCode: o.Shipping.CarrierCode,
		AWBNumber:   o.Shipping.AWBNumber,
		TrackingURL: o.Shipping.TrackingURL,
		AssignedAt:  o.Shipping.AssignedAt,
		CreatedAt:   o.CreatedAt,
	}
}

func (m OrderModel) toDomain() *orderdomain.Order {
	o := &orderdomain.Order{
		ID:          m.ID,
		OrderNumber: m.OrderNumber,
		Channel:     m.Channel,
		PaymentType: orderdomain.PaymentType(m.PaymentType),
		TotalAmount: m.TotalAmount,
		CODAmount:   m.CODAmount,
		WeightKg:    m.WeightKg,
		LengthCm:    m.LengthCm,
		BreadthCm:   m.BreadthCm,
		HeightCm:    m.HeightCm,
		Customer:    m.Customer.Data(),
		Address:     m.Address.Data(),
		Items:       m.Items.Data(),
		Shipping: orderdomain.ShippingInfo{
			CarrierCode: m.CarrierCode,
			AWBNumber:   m.AWBNumber,
			TrackingURL: m.TrackingURL,
			AssignedAt:  m.AssignedAt,
		},
		CreatedAt: m.CreatedAt,
	}
	if m.ShipmentID != nil {
		o.Shipping.ShipmentID = *m.ShipmentID
	}
	return o
}

// ShipmentModel is the shipments table. A partial unique index on order_id
// keeps one non-terminal shipment per order.
type ShipmentModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	OrderID        string `gorm:"type:varchar(64);not null;index"`
	OrderNumber    string `gorm:"type:varchar(64)"`
	CarrierID      string `gorm:"type:uuid;not null;index"`
	CarrierCode    string `gorm:"type:varchar(50);not null"`
	AWBNumber      string `gorm:"column:awb_number;type:varchar(100);not null;index"`
	TrackingNumber string `gorm:"type:varchar(100);not null;uniqueIndex"`
	TrackingURL    string `gorm:"type:text"`
	LabelURL       string `gorm:"type:text"`
	Status         string `gorm:"type:varchar(30);not null;index"`

	WeightKg           float64         `gorm:"type:numeric(10,3)"`
	LengthCm           float64         `gorm:"type:numeric(10,2)"`
	BreadthCm          float64         `gorm:"type:numeric(10,2)"`
	HeightCm           float64         `gorm:"type:numeric(10,2)"`
	VolumetricWeightKg float64         `gorm:"type:numeric(10,2)"`
	ShippingCost       decimal.Decimal `gorm:"type:numeric(10,2)"`
	IsCOD              bool            `gorm:"column:is_cod"`
	CODAmount          float64         `gorm:"column:cod_amount;type:numeric(12,2)"`

	PickupAddress   datatypes.JSONType[settingsdomain.Pickup] `gorm:"type:jsonb"`
	DeliveryAddress datatypes.JSONType[orderdomain.Address]   `gorm:"type:jsonb"`
	CarrierResponse datatypes.JSON                            `gorm:"type:jsonb"`

	AssignmentMethod string `gorm:"type:varchar(20)"`
	RuleUsed         string `gorm:"type:varchar(200)"`
	CreatedBy        string `gorm:"type:varchar(100)"`

	ExpectedDeliveryDate *time.Time
	ManifestedAt         *time.Time
	PickedUpAt           *time.Time
	DeliveredAt          *time.Time
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

func (ShipmentModel) TableName() string { return "shipments" }

func shipmentFromDomain(s *shipmentdomain.Shipment) ShipmentModel {
	return ShipmentModel{
		ID:                   s.ID,
		OrderID:              s.OrderID,
		OrderNumber:          s.OrderNumber,
		CarrierID:            s.CarrierID,
		CarrierCode:          s.CarrierCode,
		AWBNumber:            s.AWBNumber,
		TrackingNumber:       s.TrackingNumber,
		TrackingURL:          s.TrackingURL,
		LabelURL:             s.LabelURL,
		Status:               string(s.Status()),
		WeightKg:             s.WeightKg,
		LengthCm:             s.LengthCm,
		BreadthCm:            s.BreadthCm,
		HeightCm:             s.HeightCm,
		VolumetricWeightKg:   s.VolumetricWeightKg,
		ShippingCost:         s.ShippingCost,
		IsCOD:                s.IsCOD,
		CODAmount:            s.CODAmount,
		PickupAddress:        datatypes.NewJSONType(s.PickupAddress),
		DeliveryAddress:      datatypes.NewJSONType(s.DeliveryAddress),
		CarrierResponse:      datatypes.JSON(s.CarrierResponse),
		AssignmentMethod:     string(s.AssignmentMethod),
		RuleUsed:             s.RuleUsed,
		CreatedBy:            s.CreatedBy,
		ExpectedDeliveryDate: s.ExpectedDeliveryDate,
		ManifestedAt:         s.ManifestedAt,
		PickedUpAt:           s.PickedUpAt,
		DeliveredAt:          s.DeliveredAt,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func (m ShipmentModel) toDomain() *shipmentdomain.Shipment {
	return shipmentdomain.RestoreShipment(shipmentdomain.Shipment{
		ID:                   m.ID,
		OrderID:              m.OrderID,
		OrderNumber:          m.OrderNumber,
		CarrierID:            m.CarrierID,
		CarrierCode:          m.CarrierCode,
		AWBNumber:            m.AWBNumber,
		TrackingNumber:       m.TrackingNumber,
		TrackingURL:          m.TrackingURL,
		LabelURL:             m.LabelURL,
		WeightKg:             m.WeightKg,
		LengthCm:             m.LengthCm,
		BreadthCm:            m.BreadthCm,
		HeightCm:             m.HeightCm,
		VolumetricWeightKg:   m.VolumetricWeightKg,
		ShippingCost:         m.ShippingCost,
		IsCOD:                m.IsCOD,
		CODAmount:            m.CODAmount,
		PickupAddress:        m.PickupAddress.Data(),
		DeliveryAddress:      m.DeliveryAddress.Data(),
		CarrierResponse:      json.RawMessage(m.CarrierResponse),
		AssignmentMethod:     shipmentdomain.AssignmentMethod(m.AssignmentMethod),
		RuleUsed:             m.RuleUsed,
		CreatedBy:            m.CreatedBy,
		ExpectedDeliveryDate: m.ExpectedDeliveryDate,
		ManifestedAt:         m.ManifestedAt,
		PickedUpAt:           m.PickedUpAt,
		DeliveredAt:          m.DeliveredAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}, shipmentdomain.Status(m.Status))
}

// TrackingEventModel is the append-only tracking_events table, deduplicated on
// (shipment, status, event time).
type TrackingEventModel struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	ShipmentID   string         `gorm:"type:uuid;not null;uniqueIndex:uniq_tracking_event,priority:1"`
	Status       string         `gorm:"type:varchar(100);not null;uniqueIndex:uniq_tracking_event,priority:2"`
	EventTime    time.Time      `gorm:"not null;uniqueIndex:uniq_tracking_event,priority:3"`
	MappedStatus string         `gorm:"type:varchar(30)"`
	StatusCode   string         `gorm:"type:varchar(50)"`
	Location     string         `gorm:"type:varchar(200)"`
	Description  string         `gorm:"type:text"`
	RawData      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

func (TrackingEventModel) TableName() string { return "tracking_events" }

func trackingEventFromDomain(e shipmentdomain.TrackingEvent) TrackingEventModel {
	return TrackingEventModel{
		ID:           e.ID,
		ShipmentID:   e.ShipmentID,
		Status:       e.Status,
		EventTime:    e.EventTime,
		MappedStatus: string(e.MappedStatus),
		StatusCode:   e.StatusCode,
		Location:     e.Location,
		Description:  e.Description,
		RawData:      datatypes.JSON(e.RawData),
		CreatedAt:    e.CreatedAt,
	}
}

func (m TrackingEventModel) toDomain() shipmentdomain.TrackingEvent {
	return shipmentdomain.TrackingEvent{
		ID:           m.ID,
		ShipmentID:   m.ShipmentID,
		Status:       m.Status,
		MappedStatus: shipmentdomain.Status(m.MappedStatus),
		StatusCode:   m.StatusCode,
		Location:     m.Location,
		Description:  m.Description,
		EventTime:    m.EventTime.UTC(),
		RawData:      json.RawMessage(m.RawData),
		CreatedAt:    m.CreatedAt,
	}
}

// NDRModel is the ndr_records table, unique on (shipment, attempt number).
type NDRModel struct {
	ID                string    `gorm:"type:uuid;primaryKey"`
	ShipmentID        string    `gorm:"type:uuid;not null;uniqueIndex:uniq_ndr_attempt,priority:1"`
	AttemptNumber     int       `gorm:"not null;uniqueIndex:uniq_ndr_attempt,priority:2"`
	NDRDate           time.Time `gorm:"column:ndr_date;not null"`
	Reason            string    `gorm:"type:varchar(50);not null"`
	ReasonDescription string    `gorm:"type:text"`

	Action      string `gorm:"type:varchar(20)"`
	ActionNotes string `gorm:"type:text"`
	ActionBy    string `gorm:"type:varchar(100)"`
	ActionDate  *time.Time

	CustomerContacted bool
	CustomerResponse  string `gorm:"type:text"`
	NewDeliveryDate   *time.Time

	IsResolved     bool `gorm:"not null;default:false;index"`
	ResolutionDate *time.Time
}

func (NDRModel) TableName() string { return "ndr_records" }

func ndrFromDomain(n *shipmentdomain.NDRRecord) NDRModel {
	return NDRModel{
		ID:                n.ID,
		ShipmentID:        n.ShipmentID,
		AttemptNumber:     n.AttemptNumber,
		NDRDate:           n.NDRDate,
		Reason:            string(n.Reason),
		ReasonDescription: n.ReasonDescription,
		Action:            string(n.Action),
		ActionNotes:       n.ActionNotes,
		ActionBy:          n.ActionBy,
		ActionDate:        n.ActionDate,
		CustomerContacted: n.CustomerContacted,
		CustomerResponse:  n.CustomerResponse,
		NewDeliveryDate:   n.NewDeliveryDate,
		IsResolved:        n.IsResolved,
		ResolutionDate:    n.ResolutionDate,
	}
}

func (m NDRModel) toDomain() shipmentdomain.NDRRecord {
	return shipmentdomain.NDRRecord{
		ID:                m.ID,
		ShipmentID:        m.ShipmentID,
		NDRDate:           m.NDRDate.UTC(),
		Reason:            shipmentdomain.NDRReason(m.Reason),
		ReasonDescription: m.ReasonDescription,
		AttemptNumber:     m.AttemptNumber,
		Action:            shipmentdomain.NDRAction(m.Action),
		ActionNotes:       m.ActionNotes,
		ActionBy:          m.ActionBy,
		ActionDate:        m.ActionDate,
		CustomerContacted: m.CustomerContacted,
		CustomerResponse:  m.CustomerResponse,
		NewDeliveryDate:   m.NewDeliveryDate,
		IsResolved:        m.IsResolved,
		ResolutionDate:    m.ResolutionDate,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
