// Package audit checks that every container's children are numbered 1..n
// and optionally renumbers the ones that are not.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zulandar/boardsync/internal/logging"
	"github.com/zulandar/boardsync/internal/reorder"
	"gorm.io/gorm"
)

// Violation is one container whose seqNos are not exactly 1..n.
type Violation struct {
	Kind        string `json:"kind"`
	ContainerID uint   `json:"containerId"`
	Children    int    `json:"children"`
	Distinct    int    `json:"distinct"`
	MinSeqNo    int    `json:"minSeqNo"`
	MaxSeqNo    int    `json:"maxSeqNo"`
	Repaired    int    `json:"repaired,omitempty"`
}

// Report summarizes one audit pass.
type Report struct {
	Containers int           `json:"containers"`
	Violations []Violation   `json:"violations"`
	Repaired   int           `json:"repaired"`
	Duration   time.Duration `json:"duration"`
}

// Healthy reports whether no violation remains unrepaired.
func (r *Report) Healthy() bool {
	for _, v := range r.Violations {
		if v.Repaired == 0 {
			return false
		}
	}
	return true
}

// Invalidator drops cached reads after a repair.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Options controls Run.
type Options struct {
	Repair bool
	Cache  Invalidator
	Logger *slog.Logger
}

type containerStats struct {
	ContainerID  uint
	Children     int
	DistinctSeqs int
	MinSeq       int
	MaxSeq       int
}

// Run scans every container of every ordered kind.
func Run(ctx context.Context, db *gorm.DB, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = logging.FromContext(ctx)
	}
	start := time.Now()
	report := &Report{}
	gormDB := db.WithContext(ctx)

	for _, kind := range reorder.Kinds() {
		var stats []containerStats
		err := gormDB.Table(kind.Table).
			Select(kind.ContainerColumn + " AS container_id, COUNT(*) AS children, COUNT(DISTINCT seq_no) AS distinct_seqs, MIN(seq_no) AS min_seq, MAX(seq_no) AS max_seq").
			Group(kind.ContainerColumn).
			Order(kind.ContainerColumn).
			Scan(&stats).Error
		if err != nil {
			return nil, fmt.Errorf("audit: scan %s: %w", kind, err)
		}
		report.Containers += len(stats)

		for _, s := range stats {
			if s.MinSeq == 1 && s.MaxSeq == s.Children && s.DistinctSeqs == s.Children {
				continue
			}
			v := Violation{
				Kind:        kind.Name,
				ContainerID: s.ContainerID,
				Children:    s.Children,
				Distinct:    s.DistinctSeqs,
				MinSeqNo:    s.MinSeq,
				MaxSeqNo:    s.MaxSeq,
			}
			log.Warn("sequence violation",
				slog.String("kind", kind.Name), logging.Container(s.ContainerID),
				slog.Int("children", s.Children), slog.Int("distinct", s.DistinctSeqs),
				slog.Int("min", s.MinSeq), slog.Int("max", s.MaxSeq))

			if opts.Repair {
				n, err := reorder.Compact(gormDB, kind, s.ContainerID)
				if err != nil {
					return nil, fmt.Errorf("audit: repair: %w", err)
				}
				v.Repaired = n
				report.Repaired += n
			}
			report.Violations = append(report.Violations, v)
		}
	}

	if report.Repaired > 0 && opts.Cache != nil {
		if err := opts.Cache.InvalidateAll(ctx); err != nil {
			log.Warn("cache invalidation after repair failed", logging.Err(err))
		}
	}
	report.Duration = time.Since(start)
	log.Info("sequence audit complete",
		slog.Int("containers", report.Containers),
		slog.Int("violations", len(report.Violations)),
		slog.Int("repaired", report.Repaired))
	return report, nil
}
