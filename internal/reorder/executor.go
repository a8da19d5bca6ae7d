// Package reorder applies sequence plans to the store atomically.
//
// Every plan is computed from sibling rows re-read inside the same
// transaction that writes it, so a concurrent mover is always observed.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zulandar/boardsync/internal/db"
	"github.com/zulandar/boardsync/internal/logging"
	"github.com/zulandar/boardsync/internal/sequence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var (
	// ErrItemNotFound means the moved item no longer exists (a stale drag).
	ErrItemNotFound = errors.New("reorder: item not found")
	// ErrContainerNotFound means the destination container does not exist.
	ErrContainerNotFound = errors.New("reorder: container not found")
	// ErrStoreUnavailable wraps transient store faults. Callers may resubmit
	// with their freshest known position.
	ErrStoreUnavailable = errors.New("reorder: store unavailable")
)

// State is a step of one Execute call.
type State string

const (
	StateRequested  State = "requested"
	StateValidating State = "validating"
	StateApplying   State = "applying"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
	StateRolledBack State = "rolled_back"
)

// Invalidator drops cached read responses after a committed write.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Options configures an Executor. Zero values are usable.
type Options struct {
	Cache  Invalidator
	Tracer trace.Tracer
	Logger *slog.Logger
}

// Executor runs move transactions.
type Executor struct {
	db     *gorm.DB
	cache  Invalidator
	tracer trace.Tracer
	log    *slog.Logger
}

// Result is the outcome of Execute. Plan is the authoritative plan computed
// from in-transaction state; ProjectID and BoardID scope the broadcast.
type Result struct {
	State     State
	Plan      sequence.Plan
	ProjectID uint
	BoardID   uint

	// SourceProjectID and SourceBoardID scope the container the item left.
	// They equal ProjectID and BoardID for a move that stays on its board.
	SourceProjectID uint
	SourceBoardID   uint
}

// NewExecutor returns an Executor writing through gormDB.
func NewExecutor(gormDB *gorm.DB, opts Options) *Executor {
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/zulandar/boardsync/internal/reorder")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{db: gormDB, cache: opts.Cache, tracer: opts.Tracer, log: opts.Logger}
}

// Execute moves req.ItemID to req.NewSeqNo in req.DestinationContainerID.
//
// The item's current container and seqNo are read from the store; the
// request's source and old position are advisory. The returned Result always
// carries the final State, including on error.
func (e *Executor) Execute(ctx context.Context, kind Kind, req sequence.Request) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "reorder.Execute", trace.WithAttributes(
		attribute.String("reorder.kind", kind.Name),
		attribute.Int64("reorder.item_id", int64(req.ItemID)),
		attribute.Int64("reorder.destination_id", int64(req.DestinationContainerID)),
		attribute.Int("reorder.new_seq_no", req.NewSeqNo),
	))
	defer span.End()

	log := e.log.With(logging.Item(kind.Name, req.ItemID))
	res := &Result{State: StateRequested}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res.State = StateValidating

		row, err := loadItem(tx, kind, req.ItemID)
		if err != nil {
			return err
		}
		if row.ContainerID != req.SourceContainerID || row.SeqNo != req.OldSeqNo {
			log.Debug("client position stale, using stored position",
				slog.Uint64("client_container", uint64(req.SourceContainerID)),
				slog.Int("client_seq_no", req.OldSeqNo),
				logging.Container(row.ContainerID),
				slog.Int("seq_no", row.SeqNo))
		}
		req.SourceContainerID = row.ContainerID
		req.OldSeqNo = row.SeqNo

		if err := containerExists(tx, kind, req.DestinationContainerID); err != nil {
			return err
		}
		source, err := Siblings(tx, kind, req.SourceContainerID)
		if err != nil {
			return err
		}
		var destination []sequence.Sibling
		if req.CrossContainer() {
			if destination, err = Siblings(tx, kind, req.DestinationContainerID); err != nil {
				return err
			}
		}

		req, err = sequence.Validate(req, source, destination)
		if err != nil {
			return err
		}
		res.Plan = sequence.PlanMove(req, source, destination)

		res.State = StateApplying
		if err := apply(tx, kind, res.Plan.Assignments); err != nil {
			return err
		}

		res.ProjectID, res.BoardID, err = kind.scope(tx, req.ItemID, req.DestinationContainerID)
		if err != nil || !req.CrossContainer() {
			res.SourceProjectID, res.SourceBoardID = res.ProjectID, res.BoardID
			return err
		}
		res.SourceProjectID, res.SourceBoardID, err = kind.scope(tx, req.ItemID, req.SourceContainerID)
		return err
	})
	if err != nil {
		if res.State == StateApplying {
			res.State = StateRolledBack
		} else {
			res.State = StateRejected
		}
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(res.State))
		log.Warn("move failed", slog.String("state", string(res.State)), logging.Err(err))
		return res, fmt.Errorf("reorder: execute %s %d: %w", kind, req.ItemID, err)
	}

	res.State = StateCommitted
	span.SetAttributes(attribute.Int("reorder.updates", len(res.Plan.Assignments)))
	if !res.Plan.NoOp() {
		e.Invalidate(ctx)
	}
	log.Info("move committed",
		logging.Container(req.DestinationContainerID),
		slog.Int("seq_no", res.Plan.Request.NewSeqNo),
		slog.Int("updates", len(res.Plan.Assignments)))
	return res, nil
}

// Invalidate drops the response cache. Failures are logged, never returned.
func (e *Executor) Invalidate(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateAll(ctx); err != nil {
		e.log.Warn("cache invalidation failed", logging.Err(err))
	}
}

// DB returns the store handle the executor writes through.
func (e *Executor) DB() *gorm.DB {
	return e.db
}

// classify maps transient store faults onto ErrStoreUnavailable and leaves
// domain errors untouched.
func classify(err error) error {
	if errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrContainerNotFound) ||
		errors.Is(err, sequence.ErrInvalidPosition) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if db.IsTransient(err) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
