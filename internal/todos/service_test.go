package todos_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/graphql"
	"github.com/Makepad-fr/tada/internal/graphql/graphqltest"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todos"
)

func newService(t *testing.T, seed ...model.Todo) (*todos.Service, *graphqltest.Server) {
	t.Helper()
	srv := graphqltest.NewServer(t, seed...)
	c := graphql.NewClient(graphql.Options{Endpoint: srv.Endpoint()})
	t.Cleanup(c.Close)
	svc := todos.New(graphql.NewTodoAPI(c), nil, nil)
	_, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	return svc, srv
}

func ids(list []model.Todo) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

var sample = []model.Todo{
	{ID: "1", Title: "a", Done: false},
	{ID: "2", Title: "b", Done: true},
}

func TestFetchFillsSnapshot(t *testing.T) {
	svc, _ := newService(t, sample...)
	assert.True(t, svc.Loaded())
	assert.Equal(t, sample, svc.Snapshot())
	assert.NoError(t, svc.FetchErr())
}

func TestFetchErrorIsKept(t *testing.T) {
	svc, srv := newService(t, sample...)
	srv.FailNext("getTodos", "boom")

	_, err := svc.Fetch(context.Background())
	require.Error(t, err)
	assert.Error(t, svc.FetchErr())
	assert.Equal(t, sample, svc.Snapshot(), "cache keeps the last good list")

	_, err = svc.Fetch(context.Background())
	require.NoError(t, err)
	assert.NoError(t, svc.FetchErr())
}

func TestConcurrentFetchesShareOneCall(t *testing.T) {
	svc, srv := newService(t, sample...)
	release := srv.Hold("getTodos")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Fetch(context.Background())
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, svc.Fetching, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	calls := 0
	for _, c := range srv.Calls() {
		if c == "getTodos" {
			calls++
		}
	}
	assert.Less(t, calls, 1+5, "in-flight fetches are collapsed")
	assert.False(t, svc.Fetching())
}

func TestFetchJoinerOutlivesCanceledStarter(t *testing.T) {
	svc, srv := newService(t, sample...)
	release := srv.Hold("getTodos")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	starter := make(chan error, 1)
	go func() {
		_, err := svc.Fetch(ctx)
		starter <- err
	}()
	require.Eventually(t, svc.Fetching, time.Second, time.Millisecond)

	joiner := make(chan []model.Todo, 1)
	go func() {
		got, err := svc.Fetch(context.Background())
		assert.NoError(t, err)
		joiner <- got
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-starter:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller kept waiting")
	}

	release()
	select {
	case got := <-joiner:
		assert.Equal(t, ids(sample), ids(got))
	case <-time.After(2 * time.Second):
		t.Fatal("joined fetch did not finish")
	}
}

func TestCreateAppends(t *testing.T) {
	svc, srv := newService(t, sample...)
	srv.NewID = func() string { return "3" }
	before := svc.Snapshot()

	created, err := svc.Create(context.Background(), "buy milk")
	require.NoError(t, err)
	assert.NotContains(t, ids(before), created.ID)

	after := svc.Snapshot()
	require.Len(t, after, len(before)+1)
	assert.Equal(t, model.Todo{ID: "3", Title: "buy milk", Done: false}, after[len(after)-1])
}

func TestCreateFailureLeavesCache(t *testing.T) {
	svc, srv := newService(t, sample...)
	srv.FailNext("createTodo", "nope")

	_, err := svc.Create(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, sample, svc.Snapshot())
	assert.False(t, svc.Loading())
}

func TestUpdateSetsDone(t *testing.T) {
	svc, _ := newService(t, sample...)

	require.NoError(t, svc.Update(context.Background(), "1", true))
	got, ok := svc.Cache().Read("1")
	require.True(t, ok)
	assert.True(t, got.Done)
	assert.Equal(t, "a", got.Title)
}

func TestToggleFlipsCachedValue(t *testing.T) {
	svc, srv := newService(t, sample...)

	require.NoError(t, svc.Toggle(context.Background(), "2"))
	got, _ := svc.Cache().Read("2")
	assert.False(t, got.Done)
	assert.False(t, srv.Todos()[1].Done)

	require.NoError(t, svc.Toggle(context.Background(), "2"))
	got, _ = svc.Cache().Read("2")
	assert.True(t, got.Done)
}

func TestToggleUnknown(t *testing.T) {
	svc, srv := newService(t, sample...)
	before := len(srv.Calls())

	err := svc.Toggle(context.Background(), "404")
	assert.True(t, errors.Is(err, todos.ErrNotFound))
	assert.Len(t, srv.Calls(), before, "no request is sent")
}

func TestDeleteEvicts(t *testing.T) {
	svc, _ := newService(t, sample...)

	require.NoError(t, svc.Delete(context.Background(), "1"))
	after := svc.Snapshot()
	assert.Len(t, after, 1)
	assert.NotContains(t, ids(after), "1")
	_, ok := svc.Cache().Read("1")
	assert.False(t, ok)
}

func TestDeleteMissingIsSoft(t *testing.T) {
	svc, srv := newService(t, sample...)
	svc.Cache().Append("todos", model.Todo{ID: "ghost"})

	require.NoError(t, svc.Delete(context.Background(), "ghost"))
	assert.Contains(t, ids(svc.Snapshot()), "ghost", "nothing evicted without a removed id")
	assert.Len(t, srv.Todos(), 2)
}

func TestDeleteManyEvictsEach(t *testing.T) {
	seed := []model.Todo{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}
	svc, _ := newService(t, seed...)
	set := []string{"2", "4", "9"}

	removed, err := svc.DeleteMany(context.Background(), set)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "4"}, removed)

	after := ids(svc.Snapshot())
	for _, id := range set {
		assert.NotContains(t, after, id)
	}
	assert.Len(t, after, len(seed)-2)
}

func TestClearDoneScenario(t *testing.T) {
	svc, _ := newService(t, sample...)

	doneIDs := todos.DoneIDs(svc.Snapshot())
	assert.Equal(t, []string{"2"}, doneIDs)

	_, err := svc.DeleteMany(context.Background(), doneIDs)
	require.NoError(t, err)
	assert.Equal(t, []model.Todo{{ID: "1", Title: "a", Done: false}}, svc.Snapshot())
}

func TestClearDoneWithNothingDone(t *testing.T) {
	svc, _ := newService(t, model.Todo{ID: "1", Title: "a"})
	before := svc.Snapshot()

	removed, err := svc.ClearDone(context.Background())
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Equal(t, before, svc.Snapshot())
}

func TestDoneIDsEmpty(t *testing.T) {
	got := todos.DoneIDs(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadingAggregate(t *testing.T) {
	svc, srv := newService(t, sample...)
	assert.False(t, svc.Loading())

	release := srv.Hold("deleteTodo")
	done := make(chan error, 1)
	go func() { done <- svc.Delete(context.Background(), "1") }()

	require.Eventually(t, svc.Loading, time.Second, time.Millisecond)
	p := svc.Pending()
	assert.True(t, p.Delete)
	assert.False(t, p.Create)
	assert.False(t, p.Update)
	assert.False(t, p.DeleteMany)

	// other mutations are not blocked by the pending delete
	require.NoError(t, svc.Update(context.Background(), "2", false))

	release()
	require.NoError(t, <-done)
	assert.False(t, svc.Loading())
}

func TestUpdateRacingDeleteConverges(t *testing.T) {
	svc, srv := newService(t, sample...)

	release := srv.Hold("updateTodo")
	done := make(chan error, 1)
	go func() { done <- svc.Update(context.Background(), "1", true) }()
	require.Eventually(t, func() bool { return svc.Pending().Update }, time.Second, time.Millisecond)

	// the server answers the update first but the client evicts before
	// applying it
	svc.Cache().Evict("1")
	release()
	require.NoError(t, <-done)

	_, ok := svc.Cache().Read("1")
	assert.False(t, ok, "late update does not resurrect an evicted todo")
	assert.Equal(t, []string{"2"}, ids(svc.Snapshot()))
	assert.True(t, srv.Todos()[0].Done, "the server still applied it")
}
