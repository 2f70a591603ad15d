package resolver

import (
	"context"
	"net/url"
	"strings"

	"hardwarelens-api/internal/model"
)

// DefaultUPCItemDBURL is the public UPCitemdb API host.
const DefaultUPCItemDBURL = "https://api.upcitemdb.com"

type upcItemDBResponse struct {
	Items []struct {
		Title       string   `json:"title"`
		Brand       string   `json:"brand"`
		Images      []string `json:"images"`
		Description string   `json:"description"`
	} `json:"items"`
}

// UPCItemDB resolves barcodes against the crowd-sourced UPCitemdb trial API.
type UPCItemDB struct {
	fetcher *Fetcher
	baseURL string
}

// NewUPCItemDB creates the resolver. An empty baseURL uses the public host.
func NewUPCItemDB(fetcher *Fetcher, baseURL string) *UPCItemDB {
	if baseURL == "" {
		baseURL = DefaultUPCItemDBURL
	}
	return &UPCItemDB{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name implements Resolver.
func (u *UPCItemDB) Name() string { return "upcitemdb" }

// Resolve implements Resolver.
func (u *UPCItemDB) Resolve(ctx context.Context, barcode string) model.PartialRecord {
	endpoint := u.baseURL + "/prod/trial/lookup?upc=" + url.QueryEscape(barcode)

	var resp upcItemDBResponse
	if err := u.fetcher.GetJSON(ctx, endpoint, &resp); err != nil {
		u.fetcher.miss(u.Name(), barcode, err)
		return model.PartialRecord{}
	}
	if len(resp.Items) == 0 {
		return model.PartialRecord{}
	}

	item := resp.Items[0]
	out := model.PartialRecord{
		model.FieldBrand: item.Brand,
		model.FieldModel: item.Title,
		model.FieldNotes: item.Description,
	}
	if len(item.Images) > 0 {
		out[model.FieldImageURL] = item.Images[0]
	}
	return out
}
