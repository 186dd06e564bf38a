package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/fingerprint"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// saveText distills text and stores the result.
func saveText(t *testing.T, s Store, text, source string) (*Document, *distill.Result) {
	t.Helper()
	res := distill.New().Distill(text)
	doc, err := s.SaveResult(context.Background(), text, source, res)
	if err != nil {
		t.Fatalf("SaveResult(%q): %v", source, err)
	}
	return doc, res
}

// --- Database Initialization ---

func TestNewStore(t *testing.T) {
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	// Verify tables exist by querying each
	ss := s.(*SQLiteStore)
	tables := []string{"documents", "entities", "triples", "meta"}
	for _, table := range tables {
		var name string
		err := ss.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestWALMode(t *testing.T) {
	s := newTestStore(t)
	ss := s.(*SQLiteStore)

	var mode string
	ss.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	// In-memory databases use "memory" journal mode, not WAL
	if mode != "memory" && mode != "wal" {
		t.Errorf("expected journal_mode 'wal' or 'memory', got %q", mode)
	}
}

// --- SaveResult ---

func TestSaveResultRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	text := "Jane Doe works at Acme Corp in New York, NY. She started Jan 5, 2020."

	doc, res := saveText(t, s, text, "notes.txt")

	if doc.ID == 0 {
		t.Fatal("document ID not assigned")
	}
	if doc.ContentHash != HashDocument(text, "notes.txt") {
		t.Errorf("content hash mismatch: %s", doc.ContentHash)
	}
	if doc.SimHash != fingerprint.Hash(text) {
		t.Errorf("simhash mismatch: %#x", doc.SimHash)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got == nil {
		t.Fatal("GetDocument returned nil for saved document")
	}
	if got.Content != text || got.Source != "notes.txt" {
		t.Errorf("content/source mismatch: %q %q", got.Content, got.Source)
	}
	if got.Summary != res.Summary {
		t.Errorf("summary mismatch: %q", got.Summary)
	}
	if got.EntityCount != res.TotalEntities || got.RelationshipCount != res.TotalRelationships {
		t.Errorf("counts mismatch: %d/%d, want %d/%d",
			got.EntityCount, got.RelationshipCount, res.TotalEntities, res.TotalRelationships)
	}
	if got.SimHash != doc.SimHash {
		t.Errorf("stored simhash mismatch: %#x vs %#x", got.SimHash, doc.SimHash)
	}
	if got.DistilledAt.Unix() != res.Timestamp.Unix() {
		t.Errorf("distilled_at mismatch: %v vs %v", got.DistilledAt, res.Timestamp)
	}
}

func TestSaveResultStoresEntitiesInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	text := "Alice Smith met Bob Jones at NASA. Email alice@nasa.gov."

	doc, res := saveText(t, s, text, "")

	entities, err := s.EntitiesForDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("EntitiesForDocument: %v", err)
	}
	if len(entities) != res.TotalEntities {
		t.Fatalf("stored %d entities, want %d", len(entities), res.TotalEntities)
	}

	// Categories arrive sorted; values keep extraction order inside each.
	lastCategory := ""
	perCategory := make(map[string][]string)
	for _, e := range entities {
		if e.Category < lastCategory {
			t.Errorf("categories out of order: %q after %q", e.Category, lastCategory)
		}
		lastCategory = e.Category
		perCategory[e.Category] = append(perCategory[e.Category], e.Value)
	}
	for category, values := range perCategory {
		want := res.Entities[distill.Category(category)]
		if len(values) != len(want) {
			t.Errorf("category %s: stored %v, want %v", category, values, want)
			continue
		}
		for i := range want {
			if values[i] != want[i] {
				t.Errorf("category %s: stored %v, want %v", category, values, want)
				break
			}
		}
	}
}

func TestSaveResultStoresTriplesInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	text := "Jane Doe works at Acme Corp in New York, NY."

	doc, res := saveText(t, s, text, "")
	if len(res.Relationships) == 0 {
		t.Fatal("expected relationships in fixture text")
	}

	triples, err := s.TriplesForDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("TriplesForDocument: %v", err)
	}
	if len(triples) != len(res.Relationships) {
		t.Fatalf("stored %d triples, want %d", len(triples), len(res.Relationships))
	}
	for i, tr := range triples {
		want := res.Relationships[i]
		if tr.Subject != want.Subject || tr.Predicate != want.Predicate || tr.Object != want.Object {
			t.Errorf("triple %d: (%s, %s, %s), want (%s, %s, %s)",
				i, tr.Subject, tr.Predicate, tr.Object, want.Subject, want.Predicate, want.Object)
		}
	}
}

func TestSaveResultDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	text := "Jane Doe met Acme Corp."

	saveText(t, s, text, "a.txt")

	res := distill.New().Distill(text)
	_, err := s.SaveResult(ctx, text, "a.txt", res)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.DocumentCount != 1 {
		t.Errorf("duplicate save changed document count: %d", stats.DocumentCount)
	}
}

func TestSaveResultSameContentDifferentSource(t *testing.T) {
	s := newTestStore(t)
	text := "Jane Doe met Acme Corp."

	saveText(t, s, text, "a.txt")
	saveText(t, s, text, "b.txt") // must not collide: hash covers source

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.DocumentCount != 2 {
		t.Errorf("document count = %d, want 2", stats.DocumentCount)
	}
}

func TestSaveResultRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveResult(ctx, "", "x", distill.New().Distill("")); err == nil {
		t.Error("empty content: expected error")
	}
	if _, err := s.SaveResult(ctx, "text", "x", nil); err == nil {
		t.Error("nil result: expected error")
	}
}

// --- Lookup and listing ---

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.GetDocument(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc != nil {
		t.Errorf("expected nil for missing document, got %+v", doc)
	}
}

func TestListDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		saveText(t, s, fmt.Sprintf("Jane Doe note number %d.", i), "feed")
	}

	docs, err := s.ListDocuments(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("listed %d documents, want 5", len(docs))
	}
	// Newest first: descending IDs on same-timestamp rows.
	for i := 1; i < len(docs); i++ {
		if docs[i].ID > docs[i-1].ID {
			t.Errorf("list not newest-first: id %d after %d", docs[i].ID, docs[i-1].ID)
		}
	}

	page, err := s.ListDocuments(ctx, ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListDocuments page: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}
	if len(page) == 2 && page[0].ID != docs[1].ID {
		t.Errorf("offset ignored: got id %d, want %d", page[0].ID, docs[1].ID)
	}
}

func TestListDocumentsBySource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveText(t, s, "Jane Doe wrote this.", "inbox")
	saveText(t, s, "Bob Jones wrote that.", "archive")

	docs, err := s.ListDocuments(ctx, ListOpts{Source: "inbox"})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "inbox" {
		t.Errorf("source filter failed: %+v", docs)
	}
}

// --- Delete ---

func TestDeleteDocumentCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, _ := saveText(t, s, "Jane Doe works at Acme Corp.", "")

	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got != nil {
		t.Error("document still present after delete")
	}

	entities, err := s.EntitiesForDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("EntitiesForDocument: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("entity rows survived delete: %d", len(entities))
	}
	triples, err := s.TriplesForDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("TriplesForDocument: %v", err)
	}
	if len(triples) != 0 {
		t.Errorf("triple rows survived delete: %d", len(triples))
	}

	if err := s.DeleteDocument(ctx, doc.ID); err == nil {
		t.Error("second delete should report missing document")
	}
}

// --- Deduplication ---

func TestFindByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	text := "Jane Doe met Acme Corp."

	doc, _ := saveText(t, s, text, "src")

	found, err := s.FindByHash(ctx, HashDocument(text, "src"))
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if found == nil || found.ID != doc.ID {
		t.Errorf("FindByHash = %+v, want id %d", found, doc.ID)
	}

	missing, err := s.FindByHash(ctx, "no-such-hash")
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown hash, got %+v", missing)
	}
}

func TestFindNearDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := "Jane Doe works at Acme Corp in New York and files weekly reports on infrastructure reliability metrics"

	doc, _ := saveText(t, s, base, "")

	// The identical text is at distance zero.
	found, err := s.FindNearDuplicate(ctx, fingerprint.Hash(base), 3)
	if err != nil {
		t.Fatalf("FindNearDuplicate: %v", err)
	}
	if found == nil || found.ID != doc.ID {
		t.Errorf("FindNearDuplicate = %+v, want id %d", found, doc.ID)
	}

	// A one-word edit stays within a loose threshold.
	tweaked := "Jane Doe works at Acme Corp in Boston and files weekly reports on infrastructure reliability metrics"
	found, err = s.FindNearDuplicate(ctx, fingerprint.Hash(tweaked), 16)
	if err != nil {
		t.Fatalf("FindNearDuplicate: %v", err)
	}
	if found == nil || found.ID != doc.ID {
		t.Error("near-duplicate not found within threshold")
	}

	// Unrelated text is far away.
	unrelated := "quarterly revenue numbers exceeded projections across all seven product lines despite currency headwinds"
	found, err = s.FindNearDuplicate(ctx, fingerprint.Hash(unrelated), 5)
	if err != nil {
		t.Fatalf("FindNearDuplicate: %v", err)
	}
	if found != nil {
		t.Errorf("unrelated text matched: %+v", found)
	}
}

// --- Aggregates ---

func TestTopEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveText(t, s, "Jane Doe met Bob Jones.", "a")
	saveText(t, s, "Jane Doe visited NASA.", "b")
	saveText(t, s, "Jane Doe emailed Carol White.", "c")

	top, err := s.TopEntities(ctx, 3)
	if err != nil {
		t.Fatalf("TopEntities: %v", err)
	}
	if len(top) == 0 {
		t.Fatal("no top entities returned")
	}
	if top[0].Value != "Jane Doe" {
		t.Errorf("top entity = %q, want 'Jane Doe'", top[0].Value)
	}
	if top[0].Documents != 3 {
		t.Errorf("top entity documents = %d, want 3", top[0].Documents)
	}
	for _, f := range top {
		if f.Documents < 1 {
			t.Errorf("nonsense document count: %+v", f)
		}
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.DocumentCount != 0 || stats.EntityCount != 0 || stats.TripleCount != 0 {
		t.Errorf("empty store has nonzero stats: %+v", stats)
	}

	_, res := saveText(t, s, "Jane Doe works at Acme Corp.", "")

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.DocumentCount != 1 {
		t.Errorf("DocumentCount = %d, want 1", stats.DocumentCount)
	}
	if stats.EntityCount != int64(res.TotalEntities) {
		t.Errorf("EntityCount = %d, want %d", stats.EntityCount, res.TotalEntities)
	}
	if stats.TripleCount != int64(res.TotalRelationships) {
		t.Errorf("TripleCount = %d, want %d", stats.TripleCount, res.TotalRelationships)
	}
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)

	if err := s.Vacuum(context.Background()); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
}
