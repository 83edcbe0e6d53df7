package graphql

import (
	"context"

	"github.com/Makepad-fr/tada/internal/model"
)

// TodoAPI exposes the todos operations as typed calls.
type TodoAPI struct {
	c *Client
}

func NewTodoAPI(c *Client) *TodoAPI {
	return &TodoAPI{c: c}
}

func (a *TodoAPI) GetTodos(ctx context.Context) ([]model.Todo, error) {
	var data struct {
		Todos []model.Todo `json:"todos"`
	}
	if err := a.c.Do(ctx, GetTodos, nil, &data); err != nil {
		return nil, err
	}
	if data.Todos == nil {
		data.Todos = []model.Todo{}
	}
	return data.Todos, nil
}

func (a *TodoAPI) CreateTodo(ctx context.Context, title string) (model.Todo, error) {
	var data struct {
		Inserted *model.Todo `json:"insert_todos_one"`
	}
	if err := a.c.Do(ctx, CreateTodo, map[string]any{"title": title}, &data); err != nil {
		return model.Todo{}, err
	}
	if data.Inserted == nil || data.Inserted.ID == "" {
		return model.Todo{}, &Error{Kind: KindDecode, Op: CreateTodo.Name, Err: errEmptyResult}
	}
	return *data.Inserted, nil
}

// UpdateTodo sets done on one todo. found is false when the backend matched
// nothing; the returned Todo then carries only the requested id.
func (a *TodoAPI) UpdateTodo(ctx context.Context, id string, done bool) (updated model.Todo, found bool, err error) {
	var data struct {
		Updated *struct {
			ID   string `json:"id"`
			Done bool   `json:"done"`
		} `json:"update_todos_by_pk"`
	}
	vars := map[string]any{"id": id, "done": done}
	if err := a.c.Do(ctx, UpdateTodo, vars, &data); err != nil {
		return model.Todo{}, false, err
	}
	if data.Updated == nil {
		return model.Todo{ID: id}, false, nil
	}
	return model.Todo{ID: data.Updated.ID, Done: data.Updated.Done}, true, nil
}

// DeleteTodo removes one todo by primary key and returns the removed id.
// found is false when nothing matched.
func (a *TodoAPI) DeleteTodo(ctx context.Context, id string) (removed string, found bool, err error) {
	var data struct {
		Deleted *struct {
			ID string `json:"id"`
		} `json:"delete_todos_by_pk"`
	}
	if err := a.c.Do(ctx, DeleteTodo, map[string]any{"id": id}, &data); err != nil {
		return "", false, err
	}
	if data.Deleted == nil {
		return "", false, nil
	}
	return data.Deleted.ID, true, nil
}

// DeleteTodos removes every todo whose id is in ids and returns the ids the
// backend reports as removed.
func (a *TodoAPI) DeleteTodos(ctx context.Context, ids []string) ([]string, error) {
	if ids == nil {
		ids = []string{}
	}
	var data struct {
		Deleted struct {
			Returning []struct {
				ID string `json:"id"`
			} `json:"returning"`
		} `json:"delete_todos"`
	}
	if err := a.c.Do(ctx, DeleteTodos, map[string]any{"ids": ids}, &data); err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(data.Deleted.Returning))
	for _, r := range data.Deleted.Returning {
		removed = append(removed, r.ID)
	}
	return removed, nil
}
