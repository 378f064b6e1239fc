package domain

import "errors"

// ErrCredentialNotFound is returned when a carrier has no usable credential.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrActiveCredentialExists is returned when a second active credential is saved for the same environment.
var ErrActiveCredentialExists = errors.New("active credential already exists")

// Environment selects the carrier API environment.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// Known CarrierConfig keys.
const (
	ConfigPickupLocation = "pickup_location"
	ConfigLoginID        = "login_id"
	ConfigClientCode     = "client_code"
)

// CarrierConfig is the carrier-specific settings map. Known keys have accessors; anything else is free-form.
type CarrierConfig map[string]string

// Get returns the value for key and whether it is set to a non-empty value.
func (c CarrierConfig) Get(key string) (string, bool) {
	v, ok := c[key]
	return v, ok && v != ""
}

// GetOr returns the value for key or fallback.
func (c CarrierConfig) GetOr(key, fallback string) string {
	if v, ok := c.Get(key); ok {
		return v
	}
	return fallback
}

// PickupLocation is the warehouse name registered with the carrier.
func (c CarrierConfig) PickupLocation() string { return c.GetOr(ConfigPickupLocation, "") }

// LoginID is the carrier account login.
func (c CarrierConfig) LoginID() string { return c.GetOr(ConfigLoginID, "") }

// ClientCode is the carrier-assigned client code.
func (c CarrierConfig) ClientCode() string { return c.GetOr(ConfigClientCode, "") }

// Credential is a per-carrier, per-environment secret bundle.
type Credential struct {
	ID            string        `json:"id"`
	CarrierID     string        `json:"carrier_id"`
	Environment   Environment   `json:"environment"`
	APIKey        string        `json:"-"`
	APISecret     string        `json:"-"`
	ClientID      string        `json:"client_id,omitempty"`
	ClientSecret  string        `json:"-"`
	AccessToken   string        `json:"-"`
	BaseURL       string        `json:"base_url,omitempty"`
	WebhookSecret string        `json:"-"`
	Config        CarrierConfig `json:"config,omitempty"`
	IsActive      bool          `json:"is_active"`
}

// SelectCredential prefers an active production credential, then any active one.
func SelectCredential(creds []Credential) (*Credential, bool) {
	var fallback *Credential
	for i := range creds {
		c := &creds[i]
		if !c.IsActive {
			continue
		}
		if c.Environment == EnvironmentProduction {
			return c, true
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback, fallback != nil
}
