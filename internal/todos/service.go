// Package todos is the data-access layer between the views and the backend.
//
// Each mutation patches the local cache on success so callers can re-render
// from Snapshot without refetching the list.
package todos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store/cache"
)

// ErrNotFound is returned by Toggle for ids the cache does not know.
var ErrNotFound = errors.New("todo not found")

// API is the backend contract. *graphql.TodoAPI implements it.
type API interface {
	GetTodos(ctx context.Context) ([]model.Todo, error)
	CreateTodo(ctx context.Context, title string) (model.Todo, error)
	UpdateTodo(ctx context.Context, id string, done bool) (model.Todo, bool, error)
	DeleteTodo(ctx context.Context, id string) (string, bool, error)
	DeleteTodos(ctx context.Context, ids []string) ([]string, error)
}

// Pending holds the in-flight state of each mutation.
type Pending struct {
	Create, Update, Delete, DeleteMany bool
}

// Any is the loading aggregate.
func (p Pending) Any() bool {
	return p.Create || p.Update || p.Delete || p.DeleteMany
}

type Service struct {
	api    API
	cache  *cache.Cache
	logger *log.Logger

	fetches  singleflight.Group
	fetching atomic.Int32

	creating, updating, deleting, deletingMany atomic.Int32

	mu       sync.Mutex
	fetchErr error
}

// New returns a Service backed by api. A nil cache gets a fresh one and a
// nil logger discards output.
func New(api API, c *cache.Cache, logger *log.Logger) *Service {
	if c == nil {
		c = cache.New()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{api: api, cache: c, logger: logger}
}

// Cache exposes the underlying cache.
func (s *Service) Cache() *cache.Cache { return s.cache }

// Snapshot is the current projection of the todos list.
func (s *Service) Snapshot() []model.Todo {
	return s.cache.List(cache.TodosField)
}

// Loaded reports whether a list has been fetched at least once.
func (s *Service) Loaded() bool { return s.cache.Has(cache.TodosField) }

// Fetch loads the full list and replaces the cached one. Calls made while a
// fetch is running share its result.
//
// The shared query is detached from the cancellation of whichever caller
// started it; every caller stops waiting when its own ctx is done.
func (s *Service) Fetch(ctx context.Context) ([]model.Todo, error) {
	s.fetching.Add(1)
	defer s.fetching.Add(-1)

	qctx := context.WithoutCancel(ctx)
	ch := s.fetches.DoChan(cache.TodosField, func() (any, error) {
		todos, err := s.api.GetTodos(qctx)
		s.setFetchErr(err)
		if err != nil {
			return nil, err
		}
		s.cache.WriteList(cache.TodosField, todos)
		return todos, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		s.logger.Error("fetch todos", "err", res.Err)
		return nil, res.Err
	}
	s.logger.Debug("fetched todos", "count", len(res.Val.([]model.Todo)), "shared", res.Shared)
	return s.Snapshot(), nil
}

// Fetching reports whether the list query is in flight.
func (s *Service) Fetching() bool { return s.fetching.Load() > 0 }

// FetchErr is the error of the last list query, nil after a success.
func (s *Service) FetchErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchErr
}

func (s *Service) setFetchErr(err error) {
	s.mu.Lock()
	s.fetchErr = err
	s.mu.Unlock()
}

// Create adds a todo and appends it to the cached list. The title is sent
// as given.
func (s *Service) Create(ctx context.Context, title string) (model.Todo, error) {
	s.creating.Add(1)
	defer s.creating.Add(-1)

	t, err := s.api.CreateTodo(ctx, title)
	if err != nil {
		s.logger.Error("create todo", "title", title, "err", err)
		return model.Todo{}, err
	}
	s.cache.Append(cache.TodosField, t)
	s.logger.Debug("created todo", "id", t.ID)
	return t, nil
}

// Update sets done on the todo with the given id. The cached entity picks up
// the returned value; an entity evicted meanwhile stays evicted.
func (s *Service) Update(ctx context.Context, id string, done bool) error {
	s.updating.Add(1)
	defer s.updating.Add(-1)

	updated, found, err := s.api.UpdateTodo(ctx, id, done)
	if err != nil {
		s.logger.Error("update todo", "id", id, "err", err)
		return err
	}
	if !found {
		s.logger.Warn("update matched nothing", "id", id)
		return nil
	}
	s.cache.Modify(updated.ID, func(t *model.Todo) { t.Done = updated.Done })
	s.logger.Debug("updated todo", "id", updated.ID, "done", updated.Done)
	return nil
}

// Toggle flips done on a cached todo.
func (s *Service) Toggle(ctx context.Context, id string) error {
	t, ok := s.cache.Read(id)
	if !ok {
		return fmt.Errorf("toggle %s: %w", id, ErrNotFound)
	}
	return s.Update(ctx, id, !t.Done)
}

// Delete removes one todo and evicts it from the cache. Deleting an id the
// backend no longer has is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.deleting.Add(1)
	defer s.deleting.Add(-1)

	removed, found, err := s.api.DeleteTodo(ctx, id)
	if err != nil {
		s.logger.Error("delete todo", "id", id, "err", err)
		return err
	}
	if !found {
		s.logger.Warn("delete matched nothing", "id", id)
		return nil
	}
	s.cache.Evict(removed)
	s.logger.Debug("deleted todo", "id", removed)
	return nil
}

// DeleteMany removes every todo in ids and evicts each id the backend reports
// as removed. It returns the removed ids.
func (s *Service) DeleteMany(ctx context.Context, ids []string) ([]string, error) {
	s.deletingMany.Add(1)
	defer s.deletingMany.Add(-1)

	removed, err := s.api.DeleteTodos(ctx, ids)
	if err != nil {
		s.logger.Error("delete todos", "count", len(ids), "err", err)
		return nil, err
	}
	for _, id := range removed {
		s.cache.Evict(id)
	}
	s.logger.Debug("deleted todos", "requested", len(ids), "removed", len(removed))
	return removed, nil
}

// ClearDone deletes every todo marked done in the current snapshot.
func (s *Service) ClearDone(ctx context.Context) ([]string, error) {
	return s.DeleteMany(ctx, DoneIDs(s.Snapshot()))
}

// Pending returns the per-mutation in-flight flags.
func (s *Service) Pending() Pending {
	return Pending{
		Create:     s.creating.Load() > 0,
		Update:     s.updating.Load() > 0,
		Delete:     s.deleting.Load() > 0,
		DeleteMany: s.deletingMany.Load() > 0,
	}
}

// Loading is true while any mutation is in flight.
func (s *Service) Loading() bool { return s.Pending().Any() }

// DoneIDs lists the ids of the done todos, in order.
func DoneIDs(todos []model.Todo) []string {
	ids := []string{}
	for _, t := range todos {
		if t.Done {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
