package distill

import (
	"reflect"
	"testing"
)

func TestExtractEntities_WorkedExample(t *testing.T) {
	d := New()
	text := "Jane Doe works at Acme Corp in New York, NY. She started Jan 5, 2020."

	entities := d.ExtractEntities(text)

	wantContains := map[Category][]string{
		CategoryPerson:       {"Jane Doe", "Acme Corp", "New York"},
		CategoryOrganization: {"Jane Doe", "Acme Corp", "New York", "NY"},
		CategoryLocation:     {"New York, NY"},
		CategoryDate:         {"Jan 5, 2020"},
	}

	for category, want := range wantContains {
		got := entities[category]
		for _, value := range want {
			if !containsString(got, value) {
				t.Errorf("%s: expected %q in %v", category, value, got)
			}
		}
	}

	if len(entities[CategoryEmail]) != 0 {
		t.Errorf("expected no email matches, got %v", entities[CategoryEmail])
	}
	if len(entities[CategoryURL]) != 0 {
		t.Errorf("expected no url matches, got %v", entities[CategoryURL])
	}
}

func TestExtractEntities_EmptyInput(t *testing.T) {
	d := New()

	entities := d.ExtractEntities("")

	if len(entities) != 6 {
		t.Fatalf("expected all 6 categories present, got %d: %v", len(entities), entities)
	}
	for _, category := range d.Categories() {
		matches, ok := entities[category]
		if !ok {
			t.Errorf("category %s missing from result", category)
		}
		if len(matches) != 0 {
			t.Errorf("category %s: expected empty, got %v", category, matches)
		}
	}
}

func TestExtractEntities_NoMatches(t *testing.T) {
	d := New()

	entities := d.ExtractEntities("nothing here but lowercase words")

	for category, matches := range entities {
		if len(matches) != 0 {
			t.Errorf("category %s: expected empty, got %v", category, matches)
		}
	}
}

func TestExtractEntities_DuplicateSuppression(t *testing.T) {
	d := New()
	text := "Jane Doe called Jane Doe about Jane Doe"

	entities := d.ExtractEntities(text)

	count := 0
	for _, v := range entities[CategoryPerson] {
		if v == "Jane Doe" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one 'Jane Doe' under person, got %d (%v)", count, entities[CategoryPerson])
	}
}

func TestExtractEntities_FirstSeenOrder(t *testing.T) {
	d := New()
	text := "Alice Smith met Bob Jones, then Alice Smith met Carol White"

	got := entities2list(d.ExtractEntities(text), CategoryPerson)
	want := []string{"Alice Smith", "Bob Jones", "Carol White"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("person order: got %v, want %v", got, want)
	}
}

func TestExtractEntities_CategoryOverlap(t *testing.T) {
	// The two-capitalized-words shape belongs to both person and
	// organization; extraction reports it under both.
	d := New()

	entities := d.ExtractEntities("Acme Corp shipped it")

	if !containsString(entities[CategoryPerson], "Acme Corp") {
		t.Errorf("expected 'Acme Corp' under person, got %v", entities[CategoryPerson])
	}
	if !containsString(entities[CategoryOrganization], "Acme Corp") {
		t.Errorf("expected 'Acme Corp' under organization, got %v", entities[CategoryOrganization])
	}
}

func TestExtractEntities_Acronym(t *testing.T) {
	d := New()

	entities := d.ExtractEntities("She joined NASA last year")

	if !containsString(entities[CategoryOrganization], "NASA") {
		t.Errorf("expected 'NASA' under organization, got %v", entities[CategoryOrganization])
	}
	if containsString(entities[CategoryPerson], "NASA") {
		t.Errorf("did not expect 'NASA' under person, got %v", entities[CategoryPerson])
	}
}

func TestExtractEntities_EmailAndURL(t *testing.T) {
	d := New()
	text := `Reach jane.doe+dev@mail.example.org or see https://example.com/docs and www.acme.org today`

	entities := d.ExtractEntities(text)

	if !containsString(entities[CategoryEmail], "jane.doe+dev@mail.example.org") {
		t.Errorf("email: got %v", entities[CategoryEmail])
	}
	if !containsString(entities[CategoryURL], "https://example.com/docs") {
		t.Errorf("url: got %v", entities[CategoryURL])
	}
	if !containsString(entities[CategoryURL], "www.acme.org") {
		t.Errorf("www url: got %v", entities[CategoryURL])
	}
}

func TestExtractEntities_URLTermination(t *testing.T) {
	// URL tokens stop at whitespace, quotes, and angle brackets only;
	// a sentence-final period is part of the match.
	d := New()

	entities := d.ExtractEntities(`link <https://a.example/x> and "https://b.example/y" plus www.c.example.`)

	want := []string{"https://a.example/x", "https://b.example/y", "www.c.example."}
	if !reflect.DeepEqual(entities[CategoryURL], want) {
		t.Errorf("url matches: got %v, want %v", entities[CategoryURL], want)
	}
}

func TestExtractEntities_DateForms(t *testing.T) {
	d := New()

	tests := []struct {
		text string
		want string
	}{
		{"due Jan 5, 2020 at noon", "Jan 5, 2020"},
		{"due Mar 15 1999 at noon", "Mar 15 1999"},
		{"due 12/25/2023 at noon", "12/25/2023"},
		{"due 1/5/2020 at noon", "1/5/2020"},
	}

	for _, tt := range tests {
		entities := d.ExtractEntities(tt.text)
		if !containsString(entities[CategoryDate], tt.want) {
			t.Errorf("text %q: expected date %q, got %v", tt.text, tt.want, entities[CategoryDate])
		}
	}
}

func TestExtractEntities_LocationForms(t *testing.T) {
	d := New()

	tests := []struct {
		text string
		want string
	}{
		{"moved to Boston, MA last fall", "Boston, MA"},
		{"office on Main St downtown", "Main St"},
		{"office at Elm Grove Ave", "Elm Grove Ave"},
	}

	for _, tt := range tests {
		entities := d.ExtractEntities(tt.text)
		if !containsString(entities[CategoryLocation], tt.want) {
			t.Errorf("text %q: expected location %q, got %v", tt.text, tt.want, entities[CategoryLocation])
		}
	}
}

func TestExtractEntities_Deterministic(t *testing.T) {
	d := New()
	text := "Jane Doe works at Acme Corp in New York, NY. Email jane@acme.com or https://acme.com. Due Jan 5, 2020."

	first := d.ExtractEntities(text)
	second := d.ExtractEntities(text)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("extraction not deterministic:\nfirst:  %v\nsecond: %v", first, second)
	}
}

func TestEntitiesTotal(t *testing.T) {
	d := New()

	entities := d.ExtractEntities("Jane Doe emailed jane@acme.com")

	// "Jane Doe" under person and organization, plus the email.
	if got := entities.Total(); got != 3 {
		t.Errorf("Total: got %d, want 3 (%v)", got, entities)
	}
}

// --- helpers ---

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func entities2list(e Entities, c Category) []string {
	return e[c]
}
