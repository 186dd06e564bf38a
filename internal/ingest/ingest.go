// Package ingest feeds raw text into the distiller and persists the
// output. It is the intake layer shared by the CLI, the HTTP agent, and
// the drain loop: every path ends in one distilled document saved per
// input text, with exact-hash and optional SimHash deduplication.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hurttlocker/distill/internal/cache"
	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/fingerprint"
	"github.com/hurttlocker/distill/internal/store"
)

// ErrNearDuplicate is returned when SimHash screening finds a stored
// document within the configured distance of the incoming text.
var ErrNearDuplicate = errors.New("near-duplicate document already stored")

// Options tunes intake behavior.
type Options struct {
	// NearDupDistance enables SimHash screening when positive: texts
	// within this Hamming distance of a stored document are rejected
	// with ErrNearDuplicate. Zero disables screening. Exact-hash
	// dedup in the store applies regardless.
	NearDupDistance int
}

// Normalize clamps nonsense values.
func (o *Options) Normalize() {
	if o.NearDupDistance < 0 {
		o.NearDupDistance = 0
	}
	if o.NearDupDistance > 64 {
		o.NearDupDistance = 64
	}
}

// Report summarizes one drain pass over the context cache.
type Report struct {
	Scanned        int `json:"scanned"`         // pending keys seen
	Saved          int `json:"saved"`           // documents stored
	Duplicates     int `json:"duplicates"`      // exact-hash duplicates, marked processed
	NearDuplicates int `json:"near_duplicates"` // SimHash rejects, marked processed
	Empty          int `json:"empty"`           // entries with no text, marked processed
	Missing        int `json:"missing"`         // keys that vanished between scan and fetch
}

// Text distills text and saves the result under source.
func Text(ctx context.Context, s store.Store, d *distill.Distiller, text, source string, opts Options) (*store.Document, error) {
	opts.Normalize()

	if opts.NearDupDistance > 0 {
		near, err := s.FindNearDuplicate(ctx, fingerprint.Hash(text), opts.NearDupDistance)
		if err != nil {
			return nil, fmt.Errorf("screening for near-duplicates: %w", err)
		}
		if near != nil {
			return nil, fmt.Errorf("document %d is within %d bits: %w",
				near.ID, opts.NearDupDistance, ErrNearDuplicate)
		}
	}

	res := d.Distill(text)
	doc, err := s.SaveResult(ctx, text, source, res)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// File reads path (or stdin when path is "-") and ingests its content
// with the path recorded as the source.
func File(ctx context.Context, s store.Store, d *distill.Distiller, path string, opts Options) (*store.Document, error) {
	text, source, err := ReadInput(path)
	if err != nil {
		return nil, err
	}
	return Text(ctx, s, d, text, source, opts)
}

// ReadInput returns the content of path, or of stdin when path is "-",
// along with the source label to record.
func ReadInput(path string) (text, source string, err error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "stdin", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), path, nil
}

// DrainCache consumes every pending context cache entry: fetch, distill,
// save, mark processed. Exact and near duplicates are still marked
// processed so they are never rescanned; storage failures abort the pass
// with the partial report.
func DrainCache(ctx context.Context, s store.Store, d *distill.Distiller, c *cache.Cache, opts Options) (*Report, error) {
	opts.Normalize()

	pending, err := c.Pending(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Scanned: len(pending)}
	for _, key := range pending {
		entry, err := c.Fetch(ctx, key)
		if err != nil {
			return report, err
		}
		if entry == nil {
			report.Missing++
			continue
		}

		if entry.Text == "" {
			report.Empty++
			if err := c.MarkProcessed(ctx, key); err != nil {
				return report, err
			}
			continue
		}

		source := entry.Source
		if source == "" {
			source = key
		}

		_, err = Text(ctx, s, d, entry.Text, source, opts)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			report.Duplicates++
		case errors.Is(err, ErrNearDuplicate):
			report.NearDuplicates++
		case err != nil:
			return report, fmt.Errorf("ingesting %s: %w", key, err)
		default:
			report.Saved++
		}

		if err := c.MarkProcessed(ctx, key); err != nil {
			return report, err
		}
	}

	return report, nil
}
