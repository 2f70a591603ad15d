// Package enrich turns resolver contributions into a cached EnrichmentRecord.
package enrich

import "hardwarelens-api/internal/model"

// DefaultNotes is used when no contribution supplies Notes.
const DefaultNotes = "Auto-enriched"

// reserved fields are never populated by any provider.
var reserved = map[string]bool{
	model.FieldResaleUSD: true,
	model.FieldCO2kg:     true,
	model.FieldIFixit:    true,
}

// Merge folds contributions left to right. A later non-empty value overrides
// an earlier one; absent or blank values never override. Timestamp and
// Barcode are left empty for the caller to stamp.
func Merge(contributions ...model.PartialRecord) model.EnrichmentRecord {
	var rec model.EnrichmentRecord
	for _, c := range contributions {
		for _, name := range model.Header {
			if name == model.FieldTimestamp || name == model.FieldBarcode || reserved[name] {
				continue
			}
			if v := model.Value(c[name]); v != nil {
				rec.Set(name, v)
			}
		}
	}
	if rec.Notes == nil {
		rec.Notes = model.Value(DefaultNotes)
	}
	return rec
}
