package graphqltest

import (
	"encoding/json"
	"fmt"

	"github.com/Makepad-fr/tada/internal/model"
)

type idOnly struct {
	ID string `json:"id"`
}

func (s *Server) exec(op string, rawVars json.RawMessage) (any, error) {
	var vars struct {
		ID    string   `json:"id"`
		IDs   []string `json:"ids"`
		Title *string  `json:"title"`
		Done  *bool    `json:"done"`
	}
	if len(rawVars) > 0 && string(rawVars) != "null" {
		if err := json.Unmarshal(rawVars, &vars); err != nil {
			return nil, fmt.Errorf("invalid variables: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch op {
	case "getTodos":
		return map[string]any{"todos": append([]model.Todo{}, s.todos...)}, nil

	case "createTodo":
		if vars.Title == nil {
			return nil, fmt.Errorf("variable \"title\" is required")
		}
		t := model.Todo{ID: s.NewID(), Title: *vars.Title}
		s.todos = append(s.todos, t)
		return map[string]any{"insert_todos_one": t}, nil

	case "updateTodo":
		if vars.Done == nil {
			return nil, fmt.Errorf("variable \"done\" is required")
		}
		for i := range s.todos {
			if s.todos[i].ID == vars.ID {
				s.todos[i].Done = *vars.Done
				return map[string]any{"update_todos_by_pk": map[string]any{
					"id":   s.todos[i].ID,
					"done": s.todos[i].Done,
				}}, nil
			}
		}
		return map[string]any{"update_todos_by_pk": nil}, nil

	case "deleteTodo":
		for i := range s.todos {
			if s.todos[i].ID == vars.ID {
				s.todos = append(s.todos[:i], s.todos[i+1:]...)
				return map[string]any{"delete_todos_by_pk": idOnly{ID: vars.ID}}, nil
			}
		}
		return map[string]any{"delete_todos_by_pk": nil}, nil

	case "deleteTodos":
		in := make(map[string]struct{}, len(vars.IDs))
		for _, id := range vars.IDs {
			in[id] = struct{}{}
		}
		kept := s.todos[:0:0]
		removed := []idOnly{}
		for _, t := range s.todos {
			if _, ok := in[t.ID]; ok {
				removed = append(removed, idOnly{ID: t.ID})
				continue
			}
			kept = append(kept, t)
		}
		s.todos = kept
		return map[string]any{"delete_todos": map[string]any{"returning": removed}}, nil
	}
	return nil, fmt.Errorf("unknown operation %q", op)
}
