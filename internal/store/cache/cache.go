// Package cache is the client-side mirror of backend todos.
//
// Entities are normalized by id; list fields only hold ordered id references,
// so a list is a projection over the entity map. Every method is safe for
// concurrent use.
package cache

import (
	"sync"

	"github.com/Makepad-fr/tada/internal/model"
)

// TodosField is the root list field filled by the list query.
const TodosField = "todos"

type Cache struct {
	mu       sync.RWMutex
	entities map[string]model.Todo
	lists    map[string][]string
	version  uint64
}

func New() *Cache {
	return &Cache{
		entities: make(map[string]model.Todo),
		lists:    make(map[string][]string),
	}
}

// WriteList stores every todo and replaces the refs held by field.
func (c *Cache) WriteList(field string, todos []model.Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	refs := make([]string, 0, len(todos))
	seen := make(map[string]struct{}, len(todos))
	for _, t := range todos {
		c.entities[t.ID] = t
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		refs = append(refs, t.ID)
	}
	c.lists[field] = refs
	c.version++
}

// Append stores t and appends a ref to it at the end of field. A ref that is
// already present is not duplicated. Reports whether the list grew.
func (c *Cache) Append(field string, t model.Todo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entities[t.ID] = t
	c.version++
	for _, ref := range c.lists[field] {
		if ref == t.ID {
			return false
		}
	}
	c.lists[field] = append(c.lists[field], t.ID)
	return true
}

// Modify applies fn to the cached entity with the given id. Unknown ids are
// left alone and Modify returns false. fn must not change the ID.
func (c *Cache) Modify(id string, fn func(t *model.Todo)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.entities[id]
	if !ok {
		return false
	}
	fn(&t)
	t.ID = id
	c.entities[id] = t
	c.version++
	return true
}

// Evict drops the entity and every list ref pointing at it.
func (c *Cache) Evict(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, had := c.entities[id]
	delete(c.entities, id)

	for field, refs := range c.lists {
		kept := refs[:0:0]
		for _, ref := range refs {
			if ref != id {
				kept = append(kept, ref)
			}
		}
		if len(kept) != len(refs) {
			c.lists[field] = kept
			had = true
		}
	}
	if had {
		c.version++
	}
	return had
}

// Read returns a copy of the entity with the given id.
func (c *Cache) Read(id string) (model.Todo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entities[id]
	return t, ok
}

// List resolves the refs of field into a fresh slice. Refs without an entity
// are skipped.
func (c *Cache) List(field string) []model.Todo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	refs := c.lists[field]
	out := make([]model.Todo, 0, len(refs))
	for _, ref := range refs {
		if t, ok := c.entities[ref]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Has reports whether field has been written at least once.
func (c *Cache) Has(field string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.lists[field]
	return ok
}

// Version grows on every effective change.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
