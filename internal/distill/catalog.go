package distill

import "regexp"

// Category identifies a class of text span the catalog knows how to match.
type Category string

// The built-in entity categories. Rules may overlap: the same string can
// legitimately match more than one category (organization shares the
// "Capitalized Capitalized" shape with person), and extraction reports
// it under every category that matched.
const (
	CategoryPerson       Category = "person"
	CategoryOrganization Category = "organization"
	CategoryLocation     Category = "location"
	CategoryDate         Category = "date"
	CategoryEmail        Category = "email"
	CategoryURL          Category = "url"
)

// categoryRule pairs a category with its compiled matching rule.
type categoryRule struct {
	category Category
	pattern  *regexp.Regexp
}

// defaultRules builds the pattern catalog. MustCompile makes a malformed
// rule a startup panic rather than a call-time error; after construction
// the rules are read-only, so a Distiller is safe for concurrent use.
//
// Go's regexp is RE2: matching is linear in the input, so pathological
// text cannot trigger catastrophic backtracking.
func defaultRules() []categoryRule {
	return []categoryRule{
		// Two capitalized words, e.g. "Jane Doe".
		{
			category: CategoryPerson,
			pattern:  regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`),
		},
		// All-caps acronym, or the same two-word shape as person.
		{
			category: CategoryOrganization,
			pattern:  regexp.MustCompile(`\b[A-Z][A-Z]+\b|\b[A-Z][a-z]+ [A-Z][a-z]+\b`),
		},
		// "City Name, XX" or "Name St/Ave/Rd/Blvd/Dr/Ln/Ct/Pl".
		{
			category: CategoryLocation,
			pattern:  regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*, [A-Z]{2}\b|\b[A-Z][a-z]+(?: [A-Z][a-z]*)* (?:St|Ave|Rd|Blvd|Dr|Ln|Ct|Pl)\b`),
		},
		// "Jan 5, 2020" (comma optional) or "1/5/2020".
		{
			category: CategoryDate,
			pattern:  regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) \d{1,2},? \d{4}\b|\b\d{1,2}/\d{1,2}/\d{4}\b`),
		},
		// local@domain.tld with a 2+ letter top-level label.
		{
			category: CategoryEmail,
			pattern:  regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		},
		// http(s):// or www. tokens, terminated by whitespace/quote/angle.
		{
			category: CategoryURL,
			pattern:  regexp.MustCompile(`https?://[^\s<>"]+|www\.[^\s<>"]+`),
		},
	}
}

// Categories returns the catalog's category names in rule order. A
// category backed by several rules is listed once.
func (d *Distiller) Categories() []Category {
	seen := make(map[Category]bool, len(d.rules))
	out := make([]Category, 0, len(d.rules))
	for _, r := range d.rules {
		if seen[r.category] {
			continue
		}
		seen[r.category] = true
		out = append(out, r.category)
	}
	return out
}
