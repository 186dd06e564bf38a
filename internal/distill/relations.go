package distill

import (
	"sort"
	"strings"
)

// PredicatePrefix starts every inferred predicate; the suffix is the
// object entity's category name.
const PredicatePrefix = "RELATED_TO_"

// Triple is a directed co-occurrence link between two entities found in
// the same sentence. The predicate encodes the object's category only,
// so a co-occurring pair yields one triple per direction and the two
// predicates usually differ.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Less orders triples by (subject, predicate, object).
func (t Triple) Less(other Triple) bool {
	if t.Subject != other.Subject {
		return t.Subject < other.Subject
	}
	if t.Predicate != other.Predicate {
		return t.Predicate < other.Predicate
	}
	return t.Object < other.Object
}

// ExtractRelationships infers co-occurrence triples between the given
// entities, scoped to sentences of text. For every sentence and every
// pair of distinct entity strings both contained in it (substring
// containment, not token match), it emits
// (subject, "RELATED_TO_"+objectCategory, object).
//
// Because a string may be listed under several categories, the same
// subject/object pair can produce several triples differing only in
// predicate: the predicate names the object's category, not a
// canonical relation. The result is sorted by
// (subject, predicate, object) and duplicate-free.
//
// The entities argument should come from ExtractEntities over the same
// text. A mismatched mapping is accepted without validation and simply
// produces triples for whatever strings happen to occur.
func (d *Distiller) ExtractRelationships(text string, entities Entities) []Triple {
	triples := make([]Triple, 0)

	for _, sentence := range splitSentences(text) {
		for _, subjectList := range entities {
			for _, subject := range subjectList {
				if !strings.Contains(sentence, subject) {
					continue
				}
				for objectCategory, objectList := range entities {
					for _, object := range objectList {
						if object == subject || !strings.Contains(sentence, object) {
							continue
						}
						triples = append(triples, Triple{
							Subject:   subject,
							Predicate: PredicatePrefix + string(objectCategory),
							Object:    object,
						})
					}
				}
			}
		}
	}

	sort.Slice(triples, func(i, j int) bool { return triples[i].Less(triples[j]) })
	return dedupeTriples(triples)
}

// dedupeTriples removes adjacent duplicates from a sorted slice.
func dedupeTriples(sorted []Triple) []Triple {
	out := sorted[:0]
	for i, t := range sorted {
		if i > 0 && t == sorted[i-1] {
			continue
		}
		out = append(out, t)
	}
	return out
}
