package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Makepad-fr/tada/internal/auth"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/graphql"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store/cache"
	"github.com/Makepad-fr/tada/internal/todos"
	"github.com/Makepad-fr/tada/internal/tui"
	"github.com/Makepad-fr/tada/internal/ui"
)

// Options tune output behavior from root flags.
type Options struct {
	Group      bool   // plain list grouped by pending/done
	ConfigPath string // explicit config file, empty for ~/.tada/config.toml
}

// Stdin feeds `auth login`.
var Stdin io.Reader = os.Stdin

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0
	}

	cfg, err := config.Load(opt.ConfigPath)
	if err != nil {
		ui.Fail("config: " + err.Error())
		return 1
	}
	ui.SetTheme(cfg.Theme)
	ui.SetColorMode(cfg.Color)
	r := &runner{ctx: ctx, cfg: cfg, opt: opt}

	switch cmd {
	case "ls":
		fs := flag.NewFlagSet("ls", flag.ContinueOnError)
		fs.SetOutput(ui.Err)
		plain := fs.Bool("plain", false, "print a framed list instead of the interactive view")
		if err := fs.Parse(a); err != nil {
			return 2
		}
		if *plain || !ui.IsTerminal() {
			return r.doPlainList()
		}
		return r.doInteractive()

	case "add":
		if len(a) == 0 {
			ui.Fail("usage: todo add <title...>")
			return 2
		}
		return r.doAdd(strings.Join(a, " "))

	case "done":
		if len(a) != 1 {
			ui.Fail("usage: todo done <index|id>")
			return 2
		}
		return r.doToggle(a[0])

	case "rm":
		if len(a) != 1 {
			ui.Fail("usage: todo rm <index|id>")
			return 2
		}
		return r.doRemove(a[0])

	case "clear":
		return r.doClearDone()

	case "config":
		return r.doConfig()

	case "auth":
		if len(a) == 0 {
			ui.Fail("usage: todo auth <login|logout|status>")
			return 2
		}
		switch a[0] {
		case "login":
			fs := flag.NewFlagSet("auth login", flag.ContinueOnError)
			fs.SetOutput(ui.Err)
			expires := fs.Duration("expires", 0, "token lifetime, e.g. 24h (0 for unknown)")
			if err := fs.Parse(a[1:]); err != nil {
				return 2
			}
			return doAuthLogin(*expires)
		case "logout":
			return doAuthLogout()
		case "status":
			return doAuthStatus()
		default:
			ui.Fail("usage: todo auth <login|logout|status>")
			return 2
		}
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(ui.Err)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Fprint(ui.Out, `todo - a GraphQL-backed todo list

Usage:
  todo [--group] [--config PATH] <subcommand> [args]

Subcommands:
  ls [--plain]       List items (interactive unless --plain or not a terminal)
  add <title...>     Add a new item (title can be multiple words)
  done <index|id>    Toggle done for an item (1-based index or id)
  rm <index|id>      Remove an item
  clear              Remove every done item
  config             Print the resolved configuration
  auth <login [--expires D]|logout|status>
                     Manage the access token sent to the backend

Examples:
  todo add "Buy milk"
  todo ls
  todo done 2
  todo rm 3
  todo clear
`)
}

type runner struct {
	ctx context.Context
	cfg *config.Config
	opt Options
}

// service wires a data-access layer for one command. The returned func
// releases the HTTP client.
func (r *runner) service(logger *log.Logger) (*todos.Service, func(), error) {
	token, err := auth.Resolve()
	if err != nil {
		return nil, nil, err
	}
	client := graphql.NewClient(graphql.Options{
		Endpoint: r.cfg.Endpoint,
		Token:    token,
		Headers:  r.cfg.Headers,
		Timeout:  r.cfg.Timeout.Duration,
	})
	return todos.New(graphql.NewTodoAPI(client), cache.New(), logger), client.Close, nil
}

func (r *runner) stderrLogger() *log.Logger {
	return logging.New(ui.Err, logging.Options{Level: r.cfg.LogLevel, Format: r.cfg.LogFormat})
}

// load builds a service and fetches the list once.
func (r *runner) load() (*todos.Service, func(), int) {
	svc, closeFn, err := r.service(r.stderrLogger())
	if err != nil {
		ui.Fail("auth: " + err.Error())
		return nil, nil, 1
	}
	if _, err := svc.Fetch(r.ctx); err != nil {
		closeFn()
		fail("load", err)
		return nil, nil, 1
	}
	return svc, closeFn, 0
}

func fail(what string, err error) {
	ui.Fail(what + ": " + err.Error())
	if graphql.KindOf(err) == graphql.KindNetwork {
		ui.Hint("Hint: check `endpoint` in ~/.tada/config.toml or TADA_ENDPOINT")
	}
}

// -------------- subcommand impls ----------------

func (r *runner) doInteractive() int {
	logger, f, err := logging.NewFile(r.cfg.LogFile, logging.Options{Level: r.cfg.LogLevel, Format: r.cfg.LogFormat})
	if err != nil {
		ui.Fail("log: " + err.Error())
		return 1
	}
	defer f.Close()

	svc, closeFn, err := r.service(logger)
	if err != nil {
		ui.Fail("auth: " + err.Error())
		return 1
	}
	defer closeFn()

	if err := tui.Run(r.ctx, svc, logger); err != nil {
		ui.Fail("tui: " + err.Error())
		return 1
	}
	return 0
}

func (r *runner) doPlainList() int {
	svc, closeFn, code := r.load()
	if code != 0 {
		return code
	}
	defer closeFn()

	items := svc.Snapshot()
	t := ui.Current()
	d, p := model.Stats(items)
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), d,
		t.Pending.Render(t.SymPending), p,
		t.Accent.Render("Total"), len(items),
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, t.Muted.Render(ui.ProgressBar(d, d+p, 28)))
	lines = append(lines, "")

	if r.opt.Group {
		lines = append(lines, groupLines(items)...)
	} else {
		lines = append(lines, flatLines(items)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render("Tip: add with `todo add \"Buy milk\"`"))
	ui.Panel(lines)
	return 0
}

// doAdd sends the title as typed; the backend decides what it accepts.
func (r *runner) doAdd(title string) int {
	svc, closeFn, err := r.service(r.stderrLogger())
	if err != nil {
		ui.Fail("auth: " + err.Error())
		return 1
	}
	defer closeFn()

	t, err := svc.Create(r.ctx, title)
	if err != nil {
		fail("add", err)
		return 1
	}
	ui.OK("added " + shortID(t.ID))
	return 0
}

func (r *runner) doToggle(arg string) int {
	svc, closeFn, code := r.load()
	if code != 0 {
		return code
	}
	defer closeFn()

	t, code := resolve(svc.Snapshot(), arg)
	if code != 0 {
		return code
	}
	if err := svc.Toggle(r.ctx, t.ID); err != nil {
		fail("done", err)
		return 1
	}
	ui.OK("toggled")
	return 0
}

func (r *runner) doRemove(arg string) int {
	svc, closeFn, code := r.load()
	if code != 0 {
		return code
	}
	defer closeFn()

	t, code := resolve(svc.Snapshot(), arg)
	if code != 0 {
		return code
	}
	if err := svc.Delete(r.ctx, t.ID); err != nil {
		fail("rm", err)
		return 1
	}
	ui.OK("removed")
	return 0
}

func (r *runner) doClearDone() int {
	svc, closeFn, code := r.load()
	if code != 0 {
		return code
	}
	defer closeFn()

	removed, err := svc.ClearDone(r.ctx)
	if err != nil {
		fail("clear", err)
		return 1
	}
	ui.OK(fmt.Sprintf("cleared %d", len(removed)))
	return 0
}

func (r *runner) doConfig() int {
	if r.cfg.File != "" {
		fmt.Fprintln(ui.Out, ui.Current().Muted.Render("# "+r.cfg.File))
	}
	if err := toml.NewEncoder(ui.Out).Encode(r.cfg); err != nil {
		ui.Fail("config: " + err.Error())
		return 1
	}
	return 0
}

// resolve finds the todo named by a 1-based index or an id.
func resolve(items []model.Todo, arg string) (model.Todo, int) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(items) {
			ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(items), n))
			ui.Hint("Hint: run `todo ls` to see valid indexes")
			return model.Todo{}, 2
		}
		return items[n-1], 0
	}
	for _, t := range items {
		if t.ID == arg {
			return t, 0
		}
	}
	if _, err := uuid.Parse(arg); err != nil {
		ui.Fail("not an index or id: " + arg)
		return model.Todo{}, 2
	}
	ui.Fail("no todo with id " + arg)
	return model.Todo{}, 1
}

func shortID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return strings.SplitN(u.String(), "-", 2)[0]
	}
	return id
}

// ---------------------------------------------------
// Auth subcommands
// ---------------------------------------------------

// doAuthLogin reads a token from Stdin. A positive ttl records when it
// expires, for `auth status`.
func doAuthLogin(ttl time.Duration) int {
	if ttl < 0 {
		ui.Fail("--expires must not be negative")
		return 2
	}
	fmt.Fprint(ui.Out, "Paste your token: ")
	token, err := bufio.NewReader(Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		ui.Fail("read token: " + err.Error())
		return 1
	}
	var expires *time.Time
	if ttl > 0 {
		at := time.Now().Add(ttl)
		expires = &at
	}
	if err := auth.SetToken(token, expires); err != nil {
		ui.Fail("save token: " + err.Error())
		return 1
	}
	ui.OK("token saved")
	return 0
}

func doAuthLogout() int {
	ti, _ := auth.GetToken()
	if ti != nil && ti.Source == auth.SourceEnv {
		ui.OK("token is provided by " + auth.EnvToken + " env var (nothing to delete)")
		return 0
	}
	if err := auth.DeleteToken(); err != nil {
		ui.Fail("logout: " + err.Error())
		return 1
	}
	ui.OK("token removed")
	return 0
}

func doAuthStatus() int {
	ti, err := auth.GetToken()
	if err != nil {
		ui.Fail("auth: " + err.Error())
		return 1
	}
	if ti == nil {
		fmt.Fprintln(ui.Out, ui.Current().Muted.Render("no token"))
		fmt.Fprintln(ui.Out, "Run: todo auth login")
		return 0
	}
	fmt.Fprintf(ui.Out, "source: %s\n", ti.Source)
	if ti.ExpiresAt != nil {
		fmt.Fprintf(ui.Out, "expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(ui.Out, "expires: (unknown)")
	}
	fmt.Fprintln(ui.Out, "env override: "+auth.EnvToken)
	return 0
}
