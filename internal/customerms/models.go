package customerms

import "time"

// Customer is a delivery-address record. Coordinates are resolved from the
// postal code at creation time; preference maps are stored as JSON columns.
type Customer struct {
	ID                       string                 `json:"customer_id"`
	Contact                  string                 `json:"customer_contact"`
	Street                   string                 `json:"customer_street,omitempty"`
	Unit                     string                 `json:"customer_unit,omitempty"`
	PostalCode               string                 `json:"customer_postal_code"`
	HousingType              string                 `json:"housing_type,omitempty"`
	Latitude                 float64                `json:"latitude"`
	Longitude                float64                `json:"longitude"`
	DeliveryPreferences      map[string]interface{} `json:"delivery_preferences"`
	CommunicationPreferences map[string]interface{} `json:"communication_preferences"`
	IsActive                 bool                   `json:"is_active"`
	CreatedAt                time.Time              `json:"created_at"`
}

// CustomerInput is the create/validate request body. Nil preference maps
// mean the field was absent and defaults apply.
type CustomerInput struct {
	Contact                  string                 `json:"customer_contact"`
	Street                   string                 `json:"customer_street"`
	Unit                     string                 `json:"customer_unit"`
	PostalCode               string                 `json:"customer_postal_code"`
	HousingType              string                 `json:"housing_type"`
	DeliveryPreferences      map[string]interface{} `json:"delivery_preferences"`
	CommunicationPreferences map[string]interface{} `json:"communication_preferences"`
}
