package distill

// Entities maps each catalog category to the unique strings matched for
// it, in first-seen order. Every category is present, even when empty;
// key order carries no meaning. The same string may appear under more
// than one category.
type Entities map[Category][]string

// Total returns the number of matches across all categories.
func (e Entities) Total() int {
	n := 0
	for _, matches := range e {
		n += len(matches)
	}
	return n
}

// ExtractEntities scans text against every catalog rule and returns the
// per-category matches. Matches are the non-overlapping left-to-right
// occurrences of each rule; exact duplicate strings within a category
// are suppressed, keeping the first occurrence's position in the order.
//
// The scan is deterministic: the same text always produces the same
// mapping. Empty input yields every category mapped to an empty list
// (slices are non-nil so the JSON form is [] rather than null).
func (d *Distiller) ExtractEntities(text string) Entities {
	entities := make(Entities, len(d.rules))
	seen := make(map[Category]map[string]bool, len(d.rules))

	for _, rule := range d.rules {
		// Categories with several rules (WithRule) share one match list.
		if seen[rule.category] == nil {
			seen[rule.category] = make(map[string]bool)
			entities[rule.category] = make([]string, 0)
		}

		for _, m := range rule.pattern.FindAllString(text, -1) {
			if seen[rule.category][m] {
				continue
			}
			seen[rule.category][m] = true
			entities[rule.category] = append(entities[rule.category], m)
		}
	}

	return entities
}
