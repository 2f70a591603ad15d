package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"hardwarelens-api/internal/model"
)

// Default page templates. Each takes the barcode as its only %s verb.
const (
	DefaultGS1URL          = "https://www.gs1.org/services/verified-by-gs1/results?gtin=%s"
	DefaultShoppingURL     = "https://www.google.com/search?tbm=shop&q=%s"
	DefaultManufacturerURL = "https://www.google.com/search?q=%s+manufacturer"
)

// Scraper fetches a fixed set of HTML pages concurrently and runs the
// extraction rules over whatever came back.
type Scraper struct {
	fetcher   *Fetcher
	templates []string
	rules     []Rule
}

// NewScraper creates the resolver. With no templates the default GS1,
// shopping and manufacturer search pages are used.
func NewScraper(fetcher *Fetcher, templates ...string) *Scraper {
	var pages []string
	for _, t := range templates {
		if t != "" {
			pages = append(pages, t)
		}
	}
	if len(pages) == 0 {
		pages = []string{DefaultGS1URL, DefaultShoppingURL, DefaultManufacturerURL}
	}
	return &Scraper{fetcher: fetcher, templates: pages, rules: DefaultRules}
}

// Name implements Resolver.
func (s *Scraper) Name() string { return "scrape" }

// Resolve implements Resolver.
func (s *Scraper) Resolve(ctx context.Context, barcode string) model.PartialRecord {
	bodies := make([]string, len(s.templates))

	var wg sync.WaitGroup
	for i, tmpl := range s.templates {
		wg.Add(1)
		go func(i int, pageURL string) {
			defer wg.Done()
			body, err := s.fetcher.GetHTML(ctx, pageURL)
			if err != nil {
				s.fetcher.miss(s.Name(), barcode, err)
				return
			}
			bodies[i] = body
		}(i, fmt.Sprintf(tmpl, url.QueryEscape(barcode)))
	}
	wg.Wait()

	var fetched []string
	for _, b := range bodies {
		if b != "" {
			fetched = append(fetched, b)
		}
	}
	return Extract(strings.Join(fetched, "\n"), s.rules)
}
