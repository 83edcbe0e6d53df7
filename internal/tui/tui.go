// Package tui is the interactive todo list.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todos"
	"github.com/Makepad-fr/tada/internal/ui"
)

// listItem adapts model.Todo to bubbles/list.Item
type listItem struct {
	model.Todo
}

func (i listItem) FilterValue() string { return i.Title }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	t := ui.Current()
	box, text := t.Muted.Render(t.BoxUnchecked), it.Title
	if it.Done {
		box, text = t.Success.Render(t.BoxChecked), t.Done.Render(it.Title)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = t.Selected.Render(">") + " "
	}
	fmt.Fprintf(w, "%s%s %s", prefix, box, text)
}

type keyMap struct {
	toggle, remove, clear, add, refresh, quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear done")),
		add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.toggle, k.remove, k.clear, k.add, k.refresh}
}

// Model is the Bubble Tea model of the list view. It re-renders from the
// service snapshot after every fetch or mutation result.
type Model struct {
	ctx    context.Context
	svc    *todos.Service
	logger *log.Logger

	list list.Model
	ti   textinput.Model
	spin spinner.Model
	keys keyMap

	adding   bool
	inflight int    // mutations dispatched and not yet reported back
	status   string // last error, shown under the list

	synced  bool   // rows were built at least once
	version uint64 // cache version the rows were built from

	width, height int
}

// New builds the list view over svc. Nothing is fetched until Init runs.
func New(ctx context.Context, svc *todos.Service, logger *log.Logger) Model {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	t := ui.Current()

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = t.Title
	l.Styles.HelpStyle = t.Help
	l.Styles.PaginationStyle = t.Help
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")

	keys := newKeyMap()
	l.AdditionalShortHelpKeys = keys.bindings
	l.AdditionalFullHelpKeys = keys.bindings

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "New item title..."
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = t.Accent

	m := Model{
		ctx:    ctx,
		svc:    svc,
		logger: logger,
		list:   l,
		ti:     ti,
		spin:   sp,
		keys:   keys,
		width:  80,
		height: 24,
	}
	m.list.SetSize(m.width-4, m.height-4)
	m.refresh()
	return m
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, svc *todos.Service, logger *log.Logger) error {
	p := tea.NewProgram(New(ctx, svc, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

type fetchedMsg struct{ err error }

// mutatedMsg reports a finished mutation; the cache is already patched.
type mutatedMsg struct {
	op  string
	err error
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		_, err := m.svc.Fetch(m.ctx)
		return fetchedMsg{err: err}
	}
}

func (m *Model) mutate(op string, fn func(ctx context.Context) error) tea.Cmd {
	m.inflight++
	ctx := m.ctx
	return func() tea.Msg {
		return mutatedMsg{op: op, err: fn(ctx)}
	}
}

// loading is the shared loading aggregate as the view sees it.
func (m Model) loading() bool {
	return m.inflight > 0 || m.svc.Loading()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetch())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case fetchedMsg:
		if msg.err != nil {
			m.status = "fetch failed: " + msg.err.Error()
		} else {
			m.status = ""
		}
		return m, m.refresh()

	case list.FilterMatchesMsg:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case mutatedMsg:
		if m.inflight > 0 {
			m.inflight--
		}
		if msg.err != nil {
			m.logger.Error("mutation failed", "op", msg.op, "err", msg.err)
			m.status = msg.op + " failed: " + msg.err.Error()
		} else {
			m.status = ""
			if msg.op == opCreate {
				m.ti.SetValue("")
			}
		}
		return m, m.refresh()
	}

	if m.adding {
		return m.updateAdding(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.toggle):
			if it, ok := m.selected(); ok {
				id := it.ID
				return m, m.mutate(opUpdate, func(ctx context.Context) error { return m.svc.Toggle(ctx, id) })
			}
			return m, nil
		case key.Matches(msg, m.keys.remove):
			if m.loading() {
				return m, nil
			}
			if it, ok := m.selected(); ok {
				id := it.ID
				return m, m.mutate(opDelete, func(ctx context.Context) error { return m.svc.Delete(ctx, id) })
			}
			return m, nil
		case key.Matches(msg, m.keys.clear):
			if m.loading() {
				return m, nil
			}
			ids := todos.DoneIDs(m.svc.Snapshot())
			return m, m.mutate(opDeleteMany, func(ctx context.Context) error {
				_, err := m.svc.DeleteMany(ctx, ids)
				return err
			})
		case key.Matches(msg, m.keys.add):
			m.adding = true
			m.ti.Focus()
			return m, textinput.Blink
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetch()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

const (
	opCreate     = "create"
	opUpdate     = "update"
	opDelete     = "delete"
	opDeleteMany = "clear done"
)

func (m Model) updateAdding(msg tea.Msg) (tea.Model, tea.Cmd) {
	if x, ok := msg.(tea.KeyMsg); ok {
		switch x.String() {
		case "enter":
			if m.loading() {
				return m, nil
			}
			title := m.ti.Value()
			return m, m.mutate(opCreate, func(ctx context.Context) error {
				_, err := m.svc.Create(ctx, title)
				return err
			})
		case "esc":
			m.adding = false
			m.ti.SetValue("")
			m.ti.Blur()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m Model) selected() (listItem, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	return it, ok
}

// refresh rebuilds the list rows and header from the service snapshot when
// the cache changed since the last build. The returned command re-runs an
// applied filter over the new rows.
func (m *Model) refresh() tea.Cmd {
	v := m.svc.Cache().Version()
	if m.synced && v == m.version {
		return nil
	}
	m.synced, m.version = true, v

	snap := m.svc.Snapshot()
	items := make([]list.Item, 0, len(snap))
	for _, t := range snap {
		items = append(items, listItem{Todo: t})
	}
	idx := m.list.Index()
	cmd := m.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
	m.list.Title = m.header(snap)
	return cmd
}

func (m Model) header(snap []model.Todo) string {
	t := ui.Current()
	d, p := model.Stats(snap)
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), d,
		t.Pending.Render(t.SymPending), p,
		t.Accent.Render("Total"), len(snap),
	)
}

func (m Model) View() string {
	listHeight := m.height - 4
	if m.adding {
		listHeight -= 4
	}
	if m.status != "" {
		listHeight--
	}
	m.list.SetSize(m.width-4, listHeight)

	var b strings.Builder
	b.WriteString(m.list.View())

	t := ui.Current()
	switch {
	case m.loading() || m.svc.Fetching():
		b.WriteString("\n" + m.spin.View() + " " + t.Muted.Render("syncing..."))
	case !m.svc.Loaded() && m.status == "":
		b.WriteString("\n" + t.Muted.Render("loading..."))
	}
	if m.status != "" {
		b.WriteString("\n" + t.Error.Render(m.status))
	}
	if m.adding {
		title := "Add new item"
		if m.loading() {
			title += " " + t.Muted.Render("(busy)")
		}
		b.WriteString("\n" + ui.PanelString(title+"\n"+m.ti.View()))
	}
	return ui.PanelString(b.String())
}
