package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"hardwarelens-api/internal/model"
)

// DefaultOpenFoodFactsURL is the public Open Food Facts host.
const DefaultOpenFoodFactsURL = "https://world.openfoodfacts.org"

type openFoodFactsResponse struct {
	Status  int `json:"status"`
	Product *struct {
		ProductName string `json:"product_name"`
		Brands      string `json:"brands"`
		ImageURL    string `json:"image_url"`
	} `json:"product"`
}

// OpenFoodFacts resolves barcodes against the Open Food Facts product API.
type OpenFoodFacts struct {
	fetcher *Fetcher
	baseURL string
}

// NewOpenFoodFacts creates the resolver. An empty baseURL uses the public host.
func NewOpenFoodFacts(fetcher *Fetcher, baseURL string) *OpenFoodFacts {
	if baseURL == "" {
		baseURL = DefaultOpenFoodFactsURL
	}
	return &OpenFoodFacts{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name implements Resolver.
func (o *OpenFoodFacts) Name() string { return "openfoodfacts" }

// Resolve implements Resolver.
func (o *OpenFoodFacts) Resolve(ctx context.Context, barcode string) model.PartialRecord {
	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", o.baseURL, url.PathEscape(barcode))

	var resp openFoodFactsResponse
	if err := o.fetcher.GetJSON(ctx, endpoint, &resp); err != nil {
		o.fetcher.miss(o.Name(), barcode, err)
		return model.PartialRecord{}
	}
	if resp.Status != 1 || resp.Product == nil {
		return model.PartialRecord{}
	}

	brand, _, _ := strings.Cut(resp.Product.Brands, ",")
	return model.PartialRecord{
		model.FieldBrand:    strings.TrimSpace(brand),
		model.FieldModel:    resp.Product.ProductName,
		model.FieldImageURL: resp.Product.ImageURL,
	}
}
