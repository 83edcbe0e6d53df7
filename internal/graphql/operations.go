package graphql

// Operation is a prebuilt GraphQL document with its operation name.
type Operation struct {
	Name  string
	Query string
}

// The by-primary-key flavour of the Hasura todos schema.
var (
	GetTodos = Operation{Name: "getTodos", Query: `query getTodos {
  todos {
    id
    title
    done
  }
}`}

	CreateTodo = Operation{Name: "createTodo", Query: `mutation createTodo($title: String!) {
  insert_todos_one(object: { title: $title }) {
    id
    title
    done
  }
}`}

	UpdateTodo = Operation{Name: "updateTodo", Query: `mutation updateTodo($id: uuid!, $done: Boolean!) {
  update_todos_by_pk(pk_columns: { id: $id }, _set: { done: $done }) {
    id
    done
  }
}`}

	DeleteTodo = Operation{Name: "deleteTodo", Query: `mutation deleteTodo($id: uuid!) {
  delete_todos_by_pk(id: $id) {
    id
  }
}`}

	DeleteTodos = Operation{Name: "deleteTodos", Query: `mutation deleteTodos($ids: [uuid!]!) {
  delete_todos(where: { id: { _in: $ids } }) {
    returning {
      id
    }
  }
}`}
)
