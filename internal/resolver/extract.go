package resolver

import (
	"regexp"
	"strings"

	"hardwarelens-api/internal/model"
)

// Rule extracts one field from scraped page text.
type Rule struct {
	Name    string
	Field   string
	Pattern *regexp.Regexp
	// Group selects the submatch to keep; 0 is the whole match.
	Group int
	// Clean post-processes the matched text. Optional.
	Clean func(string) string
}

// Apply runs the rule against text and returns the trimmed value, or "" if
// the pattern does not match.
func (r Rule) Apply(text string) string {
	m := r.Pattern.FindStringSubmatch(text)
	if m == nil || r.Group >= len(m) {
		return ""
	}
	v := m[r.Group]
	if r.Clean != nil {
		v = r.Clean(v)
	}
	return strings.TrimSpace(v)
}

// firstPipeSegment keeps the part of a page title before the first "|".
func firstPipeSegment(s string) string {
	head, _, _ := strings.Cut(s, "|")
	return head
}

// DefaultRules is the extraction pipeline applied to scraped pages. Each rule
// is independent; the first match of each pattern wins.
var DefaultRules = []Rule{
	{
		Name:    "title",
		Field:   model.FieldModel,
		Pattern: regexp.MustCompile(`(?i)<title>([^<]+)</title>`),
		Group:   1,
		Clean:   firstPipeSegment,
	},
	{
		Name:    "og-image",
		Field:   model.FieldImageURL,
		Pattern: regexp.MustCompile(`(?i)property="og:image" content="([^"]+)"`),
		Group:   1,
	},
	{
		Name:    "brand",
		Field:   model.FieldBrand,
		Pattern: regexp.MustCompile(`(?i)Brand[^A-Za-z0-9]{0,10}([A-Za-z0-9\- ]{2,30})`),
		Group:   1,
	},
	{
		Name:    "cpu",
		Field:   model.FieldCPU,
		Pattern: regexp.MustCompile(`(?i)(Intel|AMD|Apple)[^<\n]{0,40}`),
		Group:   0,
	},
	{
		Name:    "ram",
		Field:   model.FieldRAM,
		Pattern: regexp.MustCompile(`(?i)(\d+\s?GB)\s?(RAM|Memory)`),
		Group:   1,
	},
	{
		Name:    "ssd",
		Field:   model.FieldSSD,
		Pattern: regexp.MustCompile(`(?i)(\d+\s?GB|\d+\s?TB)\s?(SSD|Storage)`),
		Group:   1,
	},
	{
		Name:    "warranty",
		Field:   model.FieldWarranty,
		Pattern: regexp.MustCompile(`(?i)(\d+\s?(year|yr|month|mo)s?\s?warranty)`),
		Group:   1,
	},
}

// Extract applies rules to text and collects the fields that matched.
func Extract(text string, rules []Rule) model.PartialRecord {
	out := model.PartialRecord{}
	if text == "" {
		return out
	}
	for _, r := range rules {
		if v := r.Apply(text); v != "" {
			out[r.Field] = v
		}
	}
	return out
}
