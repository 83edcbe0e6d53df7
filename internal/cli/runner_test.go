package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/graphql/graphqltest"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/ui"
)

type harness struct {
	srv      *graphqltest.Server
	out, err *bytes.Buffer
}

func setup(t *testing.T, seed ...model.Todo) *harness {
	t.Helper()
	srv := graphqltest.NewServer(t, seed...)

	t.Setenv("TADA_HOME", t.TempDir())
	t.Setenv("TADA_ENDPOINT", srv.Endpoint())
	t.Setenv("TADA_TOKEN", "")
	t.Setenv("TADA_COLOR", "never")
	t.Setenv("TADA_LOG_LEVEL", "error")
	t.Chdir(t.TempDir())

	h := &harness{srv: srv, out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	prevOut, prevErr := ui.Out, ui.Err
	ui.Out, ui.Err = h.out, h.err
	t.Cleanup(func() { ui.Out, ui.Err = prevOut, prevErr })
	return h
}

func run(args ...string) int {
	return Run(context.Background(), args, Options{})
}

var sample = []model.Todo{
	{ID: "1", Title: "a", Done: false},
	{ID: "2", Title: "b", Done: true},
}

func TestHelp(t *testing.T) {
	h := setup(t)
	assert.Equal(t, 0, run("help"))
	assert.Contains(t, h.out.String(), "Subcommands:")
}

func TestUnknownSubcommand(t *testing.T) {
	h := setup(t)
	assert.Equal(t, 2, run("frobnicate"))
	assert.Contains(t, h.err.String(), "unknown subcommand")
}

func TestPlainList(t *testing.T) {
	h := setup(t, sample...)
	require.Equal(t, 0, run("ls", "--plain"))
	out := h.out.String()
	assert.Contains(t, out, " 1. ☐ a")
	assert.Contains(t, out, " 2. ☑ b")
	assert.Contains(t, out, "Total 2")
}

func TestGroupedListKeepsIndexes(t *testing.T) {
	h := setup(t, model.Todo{ID: "1", Title: "a", Done: true}, model.Todo{ID: "2", Title: "b"})
	require.Equal(t, 0, Run(context.Background(), []string{"ls", "--plain"}, Options{Group: true}))
	out := h.out.String()
	pending := strings.Index(out, "Pending")
	done := strings.Index(out, "Done")
	require.True(t, pending >= 0 && done > pending)
	assert.Contains(t, out[pending:done], " 2. ☐ b")
	assert.Contains(t, out[done:], " 1. ☑ a")
}

func TestAdd(t *testing.T) {
	h := setup(t, sample...)
	require.Equal(t, 0, run("add", "buy", "milk"))
	todos := h.srv.Todos()
	require.Len(t, todos, 3)
	assert.Equal(t, "buy milk", todos[2].Title)
	assert.Contains(t, h.out.String(), "added")
}

func TestAddUsage(t *testing.T) {
	setup(t)
	assert.Equal(t, 2, run("add"))
}

func TestToggleByIndex(t *testing.T) {
	h := setup(t, sample...)

	require.Equal(t, 0, run("done", "1"))
	assert.True(t, h.srv.Todos()[0].Done)

	require.Equal(t, 0, run("done", "2"))
	assert.False(t, h.srv.Todos()[1].Done)

	require.Equal(t, 0, run("done", "1"))
	assert.False(t, h.srv.Todos()[0].Done, "toggles back")
}

func TestToggleByID(t *testing.T) {
	id := "3f1f8f3e-1b1a-4c55-9a55-0000000000aa"
	h := setup(t, model.Todo{ID: id, Title: "a"})

	require.Equal(t, 0, run("done", id))
	assert.True(t, h.srv.Todos()[0].Done)
}

func TestToggleOutOfRange(t *testing.T) {
	h := setup(t, sample...)
	assert.Equal(t, 2, run("done", "9"))
	assert.Contains(t, h.err.String(), "index out of range")
}

func TestToggleGarbage(t *testing.T) {
	h := setup(t, sample...)
	assert.Equal(t, 2, run("done", "zzz"))
	assert.Contains(t, h.err.String(), "not an index or id")
}

func TestToggleUnknownUUID(t *testing.T) {
	setup(t, sample...)
	assert.Equal(t, 1, run("done", "3f1f8f3e-1b1a-4c55-9a55-000000000000"))
}

func TestRemove(t *testing.T) {
	h := setup(t, sample...)
	require.Equal(t, 0, run("rm", "2"))
	assert.Equal(t, []model.Todo{sample[0]}, h.srv.Todos())
}

func TestClear(t *testing.T) {
	h := setup(t, sample...)
	require.Equal(t, 0, run("clear"))
	assert.Equal(t, []model.Todo{sample[0]}, h.srv.Todos())
	assert.Contains(t, h.out.String(), "cleared 1")

	h.out.Reset()
	require.Equal(t, 0, run("clear"))
	assert.Contains(t, h.out.String(), "cleared 0")
}

func TestBackendDown(t *testing.T) {
	h := setup(t, sample...)
	h.srv.Close()
	assert.Equal(t, 1, run("ls", "--plain"))
	assert.Contains(t, h.err.String(), "Hint")
}

func TestServerErrorOnAdd(t *testing.T) {
	h := setup(t)
	h.srv.FailNext("createTodo", "not-null violation")
	assert.Equal(t, 1, run("add", "x"))
	assert.Contains(t, h.err.String(), "not-null violation")
}

func TestTokenIsSent(t *testing.T) {
	h := setup(t)
	t.Setenv("TADA_TOKEN", "abc")
	require.Equal(t, 0, run("ls", "--plain"))
	assert.Equal(t, "Bearer abc", h.srv.Header().Get("Authorization"))
}

func TestAuthLoginStatusLogout(t *testing.T) {
	h := setup(t)
	prev := Stdin
	Stdin = strings.NewReader("tok123\n")
	t.Cleanup(func() { Stdin = prev })

	require.Equal(t, 0, run("auth", "login"))
	require.Equal(t, 0, run("auth", "status"))
	assert.Contains(t, h.out.String(), "source: file")

	require.Equal(t, 0, run("ls", "--plain"))
	assert.Equal(t, "Bearer tok123", h.srv.Header().Get("Authorization"))

	require.Equal(t, 0, run("auth", "logout"))
	h.out.Reset()
	require.Equal(t, 0, run("auth", "status"))
	assert.Contains(t, h.out.String(), "no token")
}

func TestAuthLoginWithExpiry(t *testing.T) {
	h := setup(t)
	prev := Stdin
	Stdin = strings.NewReader("tok123\n")
	t.Cleanup(func() { Stdin = prev })

	require.Equal(t, 0, run("auth", "login", "--expires", "24h"))
	require.Equal(t, 0, run("auth", "status"))
	assert.Contains(t, h.out.String(), "expires: "+time.Now().Add(24*time.Hour).UTC().Format("2006-01-02"))
	assert.NotContains(t, h.out.String(), "(unknown)")

	assert.Equal(t, 2, run("auth", "login", "--expires", "-1h"))
	assert.Equal(t, 2, run("auth", "login", "--expires", "soon"))
}

func TestConfigPrintsEndpoint(t *testing.T) {
	h := setup(t)
	require.Equal(t, 0, run("config"))
	assert.Contains(t, h.out.String(), h.srv.Endpoint())
}

func TestResolve(t *testing.T) {
	setup(t)
	got, code := resolve(sample, "2")
	assert.Zero(t, code)
	assert.Equal(t, "b", got.Title)

	got, code = resolve(sample, "1")
	assert.Zero(t, code)
	assert.Equal(t, "a", got.Title)

	_, code = resolve(nil, "1")
	assert.Equal(t, 2, code)
}
