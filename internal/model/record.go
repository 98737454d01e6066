package model

import "encoding/json"

// TaxRecord is one entry of the upstream tax-record list. Only the fields
// below are consumed; Raw keeps the full upstream object so updates can send
// it back without losing fields this service does not know about.
type TaxRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Country     string `json:"country,omitempty"`
	RequestDate string `json:"requestDate,omitempty"` // display string, see service normalization
	CreatedAt   string `json:"createdAt,omitempty"`   // raw source timestamp

	Raw json.RawMessage `json:"-"`
}

// Country is a selectable jurisdiction. The name doubles as the identifier:
// it is both the display label and the value stored on TaxRecord.Country.
type Country struct {
	Name string `json:"name"`
}
