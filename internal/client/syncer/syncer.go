// Package syncer reconciles the local projection of one remote collection
// with the gateway's CRUD calls. One Syncer per tracked collection; the
// projection it owns is the only local mirror of that collection's contents.
package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"costtracker/internal/errs"
	"costtracker/internal/model"
)

// Status is the collection-level fetch lifecycle.
type Status int

const (
	// StatusIdle means no fetch is running. Combined with Fetched it
	// distinguishes "never loaded" from "loaded, possibly empty".
	StatusIdle Status = iota
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Projection is the local mirror of a remote collection. Entries keep the
// order of the last successful fetch; local mutations preserve position and
// never re-sort.
type Projection[T any] struct {
	Entries []T
	Status  Status
	Err     error
	Fetched bool
}

// Record is a stored document with a server-assigned id.
type Record interface {
	RecordID() uuid.UUID
}

// Remote is the per-collection gateway surface the syncer drives.
type Remote[T Record, F any] interface {
	List(ctx context.Context, userID uuid.UUID) ([]T, error)
	Create(ctx context.Context, userID uuid.UUID, fields F) (T, error)
	Replace(ctx context.Context, userID, id uuid.UUID, fields F) error
	Remove(ctx context.Context, userID, id uuid.UUID) error
}

// SessionView exposes the current session and its epoch. The epoch changes on
// every sign-in and sign-out; an operation captures it at issue time and a
// completion is applied only while the same epoch is still current.
type SessionView interface {
	Snapshot() (session model.Session, epoch uint64, ok bool)
}

// Syncer owns the projection of one collection. All remote results pass an
// epoch check before touching the projection, so a completion that lands
// after sign-out is discarded rather than applied to the wrong session.
type Syncer[T Record, F any] struct {
	remote   Remote[T, F]
	sessions SessionView
	validate func(F) error
	rebuild  func(id uuid.UUID, fields F) T
	log      *zap.Logger

	mu       sync.Mutex
	proj     Projection[T]
	inflight map[uuid.UUID]struct{}
}

// New constructs a syncer. validate guards mutation payloads at the boundary
// and may be nil; rebuild assembles the record an acknowledged replace left
// on the server so the local entry can be patched in place.
func New[T Record, F any](remote Remote[T, F], sessions SessionView, validate func(F) error, rebuild func(uuid.UUID, F) T, log *zap.Logger) *Syncer[T, F] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer[T, F]{
		remote:   remote,
		sessions: sessions,
		validate: validate,
		rebuild:  rebuild,
		log:      log,
		inflight: map[uuid.UUID]struct{}{},
	}
}

// ForItems builds the items syncer with its field validation.
func ForItems(remote Remote[model.CostItem, model.CostItemFields], sessions SessionView, log *zap.Logger) *Syncer[model.CostItem, model.CostItemFields] {
	return New(remote, sessions, validateItem,
		func(id uuid.UUID, f model.CostItemFields) model.CostItem {
			return model.CostItem{ID: id, CostItemFields: f}
		}, log)
}

// ForOtherCosts builds the otherCosts syncer with its field validation.
func ForOtherCosts(remote Remote[model.OtherCost, model.OtherCostFields], sessions SessionView, log *zap.Logger) *Syncer[model.OtherCost, model.OtherCostFields] {
	return New(remote, sessions, validateOtherCost,
		func(id uuid.UUID, f model.OtherCostFields) model.OtherCost {
			return model.OtherCost{ID: id, OtherCostFields: f}
		}, log)
}

func validateItem(f model.CostItemFields) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: item name must not be empty", errs.ErrValidation)
	}
	if f.Cost < 0 {
		return fmt.Errorf("%w: item cost must not be negative", errs.ErrValidation)
	}
	return nil
}

func validateOtherCost(f model.OtherCostFields) error {
	if strings.TrimSpace(f.Description) == "" {
		return fmt.Errorf("%w: cost description must not be empty", errs.ErrValidation)
	}
	if f.Amount < 0 {
		return fmt.Errorf("%w: cost amount must not be negative", errs.ErrValidation)
	}
	return nil
}

// Projection returns a snapshot copy of the current projection.
func (s *Syncer[T, F]) Projection() Projection[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.proj
	p.Entries = append([]T(nil), s.proj.Entries...)
	return p
}

// Reset clears the projection back to the never-fetched state. Called by the
// session manager on sign-out; in-flight completions from the old session are
// rejected by the epoch check afterwards.
func (s *Syncer[T, F]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proj = Projection[T]{}
	s.inflight = map[uuid.UUID]struct{}{}
}

// Fetch replaces the projection with the remote listing. On failure the
// previous entries stay untouched and the projection carries the error, so a
// fetch failure stays visible to readers that did not initiate it. Safe to
// call again after an error.
func (s *Syncer[T, F]) Fetch(ctx context.Context) error {
	sess, epoch, ok := s.snapshot()
	if !ok {
		return errs.ErrNoSession
	}

	s.mu.Lock()
	s.proj.Status = StatusLoading
	s.proj.Err = nil
	s.mu.Unlock()

	entries, err := s.remote.List(ctx, sess.UserID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(epoch) {
		s.log.Debug("fetch result discarded, session changed")
		return err
	}
	if err != nil {
		s.proj.Status = StatusError
		s.proj.Err = err
		return err
	}
	s.proj = Projection[T]{Entries: entries, Status: StatusIdle, Fetched: true}
	return nil
}

// Add creates a record remotely and appends the acknowledged result. Nothing
// is inserted optimistically; a failed call leaves entries untouched.
func (s *Syncer[T, F]) Add(ctx context.Context, fields F) (T, error) {
	var zero T
	if s.validate != nil {
		if err := s.validate(fields); err != nil {
			return zero, err
		}
	}
	sess, epoch, ok := s.snapshot()
	if !ok {
		return zero, errs.ErrNoSession
	}

	rec, err := s.remote.Create(ctx, sess.UserID, fields)
	if err != nil {
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(epoch) {
		s.log.Debug("add result discarded, session changed", zap.Stringer("id", rec.RecordID()))
		return rec, nil
	}
	s.proj.Entries = append(s.proj.Entries, rec)
	return rec, nil
}

// Update replaces the record remotely and patches the matching entry in
// place, preserving its position. A stale local id surfaces as ErrNotFound;
// the syncer does not refetch on that path.
func (s *Syncer[T, F]) Update(ctx context.Context, id uuid.UUID, fields F) error {
	if s.validate != nil {
		if err := s.validate(fields); err != nil {
			return err
		}
	}
	sess, epoch, ok := s.snapshot()
	if !ok {
		return errs.ErrNoSession
	}
	if err := s.acquire(id); err != nil {
		return err
	}
	defer s.release(id)

	if err := s.remote.Replace(ctx, sess.UserID, id, fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(epoch) {
		return nil
	}
	for i, rec := range s.proj.Entries {
		if rec.RecordID() == id {
			s.proj.Entries[i] = s.rebuild(id, fields)
			break
		}
	}
	return nil
}

// Delete removes the record remotely and drops the matching entry. On
// failure the entry remains.
func (s *Syncer[T, F]) Delete(ctx context.Context, id uuid.UUID) error {
	sess, epoch, ok := s.snapshot()
	if !ok {
		return errs.ErrNoSession
	}
	if err := s.acquire(id); err != nil {
		return err
	}
	defer s.release(id)

	if err := s.remote.Remove(ctx, sess.UserID, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale(epoch) {
		return nil
	}
	for i, rec := range s.proj.Entries {
		if rec.RecordID() == id {
			s.proj.Entries = append(s.proj.Entries[:i], s.proj.Entries[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Syncer[T, F]) snapshot() (model.Session, uint64, bool) {
	if s.sessions == nil {
		return model.Session{}, 0, false
	}
	return s.sessions.Snapshot()
}

// stale reports whether the session changed since the operation was issued.
// Callers hold s.mu.
func (s *Syncer[T, F]) stale(epoch uint64) bool {
	_, cur, ok := s.sessions.Snapshot()
	return !ok || cur != epoch
}

// acquire takes the per-id mutation slot. A second update/delete against an
// id already in flight is rejected instead of interleaved, which is what
// keeps out-of-order completions from losing updates.
func (s *Syncer[T, F]) acquire(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return fmt.Errorf("%w: id %s", errs.ErrOperationInProgress, id)
	}
	s.inflight[id] = struct{}{}
	return nil
}

func (s *Syncer[T, F]) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}
