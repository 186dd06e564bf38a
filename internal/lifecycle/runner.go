// Package lifecycle implements the store maintenance sweep.
//
// A sweep walks the document table and applies retention policies:
// near-duplicate pruning by SimHash distance, age-based expiry, and a
// per-source volume cap. Every run produces a full action report; in
// dry-run mode the report is the only output and nothing is deleted.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	cfgresolver "github.com/hurttlocker/distill/internal/config"
	"github.com/hurttlocker/distill/internal/fingerprint"
	"github.com/hurttlocker/distill/internal/store"
)

// Action is one planned or applied document deletion.
type Action struct {
	Policy     string `json:"policy"`
	Action     string `json:"action"`
	DocumentID int64  `json:"document_id"`
	KeptID     int64  `json:"kept_id,omitempty"`
	Source     string `json:"source,omitempty"`
	Reason     string `json:"reason"`
	Applied    bool   `json:"applied"`
}

// Report summarizes one sweep.
type Report struct {
	DryRun     bool     `json:"dry_run"`
	Scanned    int      `json:"scanned"`
	Applied    int      `json:"applied"`
	Actions    []Action `json:"actions"`
	PolicyRuns struct {
		NearDuplicatePrune int `json:"near_duplicate_prune"`
		RetentionExpire    int `json:"retention_expire"`
		SourceCap          int `json:"source_cap"`
	} `json:"policy_runs"`
}

// Runner executes maintenance sweeps against a SQLite-backed store.
type Runner struct {
	st     store.Store
	sqlite *store.SQLiteStore
	cfg    cfgresolver.MaintenanceConfig
	now    time.Time
}

func NewRunner(st store.Store, cfg cfgresolver.MaintenanceConfig) (*Runner, error) {
	sqlite, ok := st.(*store.SQLiteStore)
	if !ok {
		return nil, fmt.Errorf("maintenance runner requires sqlite store")
	}
	return &Runner{st: st, sqlite: sqlite, cfg: cfg, now: time.Now().UTC()}, nil
}

// Run executes every enabled policy and returns the combined report.
// With dryRun the report lists what would be deleted and the store is
// left untouched.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{DryRun: dryRun, Actions: make([]Action, 0, 64)}

	if err := cfgresolver.ValidateMaintenanceConfig(r.cfg); err != nil {
		return nil, err
	}

	// Documents planned for pruning by an earlier policy are skipped by
	// the later ones, so a sweep never plans the same deletion twice.
	pruned := map[int64]struct{}{}

	if r.cfg.NearDuplicatePrune.Enabled {
		actions, scanned, err := r.planNearDuplicatePrune(ctx, pruned)
		if err != nil {
			return nil, err
		}
		report.Scanned += scanned
		report.PolicyRuns.NearDuplicatePrune = len(actions)
		report.Actions = append(report.Actions, actions...)
	}

	if r.cfg.RetentionExpire.Enabled {
		actions, scanned, err := r.planRetentionExpire(ctx, pruned)
		if err != nil {
			return nil, err
		}
		report.Scanned += scanned
		report.PolicyRuns.RetentionExpire = len(actions)
		report.Actions = append(report.Actions, actions...)
	}

	if r.cfg.SourceCap.Enabled {
		actions, scanned, err := r.planSourceCap(ctx, pruned)
		if err != nil {
			return nil, err
		}
		report.Scanned += scanned
		report.PolicyRuns.SourceCap = len(actions)
		report.Actions = append(report.Actions, actions...)
	}

	if !dryRun {
		for i := range report.Actions {
			if err := r.st.DeleteDocument(ctx, report.Actions[i].DocumentID); err != nil {
				report.Actions[i].Reason += "; apply_error: " + err.Error()
			} else {
				report.Actions[i].Applied = true
			}
		}
	}

	for _, a := range report.Actions {
		if a.Applied {
			report.Applied++
		}
	}
	return report, nil
}

// planNearDuplicatePrune walks documents oldest first and plans to prune
// any whose SimHash falls within MaxDistance bits of a surviving older
// document. The older document always wins, mirroring ingest screening.
func (r *Runner) planNearDuplicatePrune(ctx context.Context, pruned map[int64]struct{}) ([]Action, int, error) {
	cfg := r.cfg.NearDuplicatePrune
	rows, err := r.sqlite.GetDB().QueryContext(ctx,
		`SELECT id, simhash, source FROM documents ORDER BY id`)
	if err != nil {
		return nil, 0, fmt.Errorf("query near-duplicate candidates: %w", err)
	}

	type survivor struct {
		id      int64
		simhash uint64
	}
	actions := []Action{}
	var survivors []survivor
	scanned := 0
	for rows.Next() {
		var id, stored int64
		var source string
		if err := rows.Scan(&id, &stored, &source); err != nil {
			_ = rows.Close()
			return nil, scanned, fmt.Errorf("scan near-duplicate row: %w", err)
		}
		scanned++
		if _, gone := pruned[id]; gone {
			continue
		}
		simhash := uint64(stored)

		matched := false
		for _, s := range survivors {
			if d := fingerprint.Distance(simhash, s.simhash); d <= cfg.MaxDistance {
				actions = append(actions, Action{
					Policy:     "near-duplicate-prune",
					Action:     "prune",
					DocumentID: id,
					KeptID:     s.id,
					Source:     source,
					Reason:     fmt.Sprintf("simhash distance %d from document %d (max %d)", d, s.id, cfg.MaxDistance),
				})
				pruned[id] = struct{}{}
				matched = true
				break
			}
		}
		if !matched {
			survivors = append(survivors, survivor{id: id, simhash: simhash})
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, scanned, err
	}
	if err := rows.Close(); err != nil {
		return nil, scanned, fmt.Errorf("close near-duplicate rows: %w", err)
	}
	return actions, scanned, nil
}

// planRetentionExpire plans to prune documents distilled more than
// MaxAgeDays ago.
func (r *Runner) planRetentionExpire(ctx context.Context, pruned map[int64]struct{}) ([]Action, int, error) {
	cfg := r.cfg.RetentionExpire
	rows, err := r.sqlite.GetDB().QueryContext(ctx,
		`SELECT id, source, distilled_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, 0, fmt.Errorf("query retention candidates: %w", err)
	}

	actions := []Action{}
	scanned := 0
	for rows.Next() {
		var id int64
		var source string
		var distilledAt time.Time
		if err := rows.Scan(&id, &source, &distilledAt); err != nil {
			_ = rows.Close()
			return nil, scanned, fmt.Errorf("scan retention row: %w", err)
		}
		scanned++
		if _, gone := pruned[id]; gone {
			continue
		}
		days := int(r.now.Sub(distilledAt).Hours() / 24)
		if days <= cfg.MaxAgeDays {
			continue
		}
		actions = append(actions, Action{
			Policy:     "retention-expire",
			Action:     "prune",
			DocumentID: id,
			Source:     source,
			Reason:     fmt.Sprintf("age_days=%d > %d", days, cfg.MaxAgeDays),
		})
		pruned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, scanned, err
	}
	if err := rows.Close(); err != nil {
		return nil, scanned, fmt.Errorf("close retention rows: %w", err)
	}
	return actions, scanned, nil
}

// planSourceCap plans to prune all but the newest KeepPerSource documents
// of each source.
func (r *Runner) planSourceCap(ctx context.Context, pruned map[int64]struct{}) ([]Action, int, error) {
	cfg := r.cfg.SourceCap
	rows, err := r.sqlite.GetDB().QueryContext(ctx,
		`SELECT id, source FROM documents ORDER BY source ASC, distilled_at DESC, id DESC`)
	if err != nil {
		return nil, 0, fmt.Errorf("query source-cap candidates: %w", err)
	}

	actions := []Action{}
	perSource := map[string]int{}
	scanned := 0
	for rows.Next() {
		var id int64
		var source string
		if err := rows.Scan(&id, &source); err != nil {
			_ = rows.Close()
			return nil, scanned, fmt.Errorf("scan source-cap row: %w", err)
		}
		scanned++
		if _, gone := pruned[id]; gone {
			continue
		}
		perSource[source]++
		if perSource[source] <= cfg.KeepPerSource {
			continue
		}
		actions = append(actions, Action{
			Policy:     "source-cap",
			Action:     "prune",
			DocumentID: id,
			Source:     source,
			Reason:     fmt.Sprintf("source already has %d newer documents (cap %d)", cfg.KeepPerSource, cfg.KeepPerSource),
		})
		pruned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, scanned, err
	}
	if err := rows.Close(); err != nil {
		return nil, scanned, fmt.Errorf("close source-cap rows: %w", err)
	}
	return actions, scanned, nil
}
