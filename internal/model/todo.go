package model

// Todo is the domain model for a todo entry as the backend stores it.
// ID is assigned by the backend and never changes.
type Todo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Stats counts done and pending entries.
func Stats(todos []Todo) (done, pending int) {
	for _, t := range todos {
		if t.Done {
			done++
		} else {
			pending++
		}
	}
	return
}
