package model

import "strings"

// Field names. They double as JSON keys and ledger column headers.
const (
	FieldTimestamp = "Timestamp"
	FieldBarcode   = "Barcode"
	FieldBrand     = "Brand"
	FieldModel     = "Model"
	FieldCPU       = "CPU"
	FieldRAM       = "RAM"
	FieldSSD       = "SSD"
	FieldWarranty  = "Warranty"
	FieldResaleUSD = "ResaleUSD"
	FieldCO2kg     = "CO2kg"
	FieldIFixit    = "iFixit"
	FieldImageURL  = "ImageURL"
	FieldNotes     = "Notes"
)

// Header is the fixed, ordered ledger schema.
var Header = []string{
	FieldTimestamp,
	FieldBarcode,
	FieldBrand,
	FieldModel,
	FieldCPU,
	FieldRAM,
	FieldSSD,
	FieldWarranty,
	FieldResaleUSD,
	FieldCO2kg,
	FieldIFixit,
	FieldImageURL,
	FieldNotes,
}

// EnrichmentRecord is the resolved hardware metadata for one barcode.
// Nullable fields are nil or a non-empty trimmed string, never "".
type EnrichmentRecord struct {
	Timestamp string  `json:"Timestamp"`
	Barcode   string  `json:"Barcode"`
	Brand     *string `json:"Brand"`
	Model     *string `json:"Model"`
	CPU       *string `json:"CPU"`
	RAM       *string `json:"RAM"`
	SSD       *string `json:"SSD"`
	Warranty  *string `json:"Warranty"`
	ResaleUSD *string `json:"ResaleUSD"`
	CO2kg     *string `json:"CO2kg"`
	IFixit    *string `json:"iFixit"`
	ImageURL  *string `json:"ImageURL"`
	Notes     *string `json:"Notes"`
}

// PartialRecord is one resolver's sparse contribution, keyed by field name.
// A missing key and a blank value both mean "absent".
type PartialRecord map[string]string

// LedgerRow is a record projected onto Header order.
type LedgerRow []string

// Value trims s and returns nil when nothing is left.
func Value(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// nullable returns the address of the nullable field named name, or nil for
// Timestamp, Barcode and unknown names.
func (r *EnrichmentRecord) nullable(name string) **string {
	switch name {
	case FieldBrand:
		return &r.Brand
	case FieldModel:
		return &r.Model
	case FieldCPU:
		return &r.CPU
	case FieldRAM:
		return &r.RAM
	case FieldSSD:
		return &r.SSD
	case FieldWarranty:
		return &r.Warranty
	case FieldResaleUSD:
		return &r.ResaleUSD
	case FieldCO2kg:
		return &r.CO2kg
	case FieldIFixit:
		return &r.IFixit
	case FieldImageURL:
		return &r.ImageURL
	case FieldNotes:
		return &r.Notes
	}
	return nil
}

// Get returns the value of field name, or nil when it is absent.
func (r *EnrichmentRecord) Get(name string) *string {
	switch name {
	case FieldTimestamp:
		return Value(r.Timestamp)
	case FieldBarcode:
		return Value(r.Barcode)
	}
	if p := r.nullable(name); p != nil {
		return *p
	}
	return nil
}

// Set assigns field name, normalising blank values to nil. It reports
// whether name is a known field.
func (r *EnrichmentRecord) Set(name string, value *string) bool {
	switch name {
	case FieldTimestamp:
		r.Timestamp = Deref(value)
		return true
	case FieldBarcode:
		r.Barcode = Deref(value)
		return true
	}
	p := r.nullable(name)
	if p == nil {
		return false
	}
	if value != nil {
		value = Value(*value)
	}
	*p = value
	return true
}

// Row projects the record onto Header order. Absent fields become "".
func (r *EnrichmentRecord) Row() LedgerRow {
	row := make(LedgerRow, len(Header))
	for i, name := range Header {
		row[i] = Deref(r.Get(name))
	}
	return row
}

// RecordFromRow reshapes a ledger row into a record. Cells past the end of a
// short row are left absent.
func RecordFromRow(row []string) EnrichmentRecord {
	var rec EnrichmentRecord
	for i, name := range Header {
		if i >= len(row) {
			break
		}
		cell := row[i]
		rec.Set(name, &cell)
	}
	return rec
}
