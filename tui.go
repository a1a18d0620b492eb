package eaterss

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type session int

const (
	sessionEditing session = iota
	sessionList
	sessionDetail
)

var (
	inputBarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
	listPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Padding(0, 1)
	readItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(1, 2)
)

type keyMap struct {
	Select  key.Binding
	Refresh key.Binding
	Escape  key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "edit url"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// feedFetcher is what the shell needs from the fetch layer. Tests substitute
// a stub so no keyboard test touches the network.
type feedFetcher interface {
	Fetch(URL string) (Feed, error)
}

type feedLoadedMsg struct {
	url  string
	feed Feed
	err  error
}

type entry struct {
	item Item
	read *ReadSet
}

func (e entry) Title() string {
	if e.read.Read(e.item.Link) {
		return readItemStyle.Render(e.item.Title)
	}
	return e.item.Title
}

func (e entry) Description() string {
	if !e.item.Published.IsZero() {
		return e.item.Published.Format("2006-01-02 15:04")
	}
	summary := e.item.Summary
	if len(summary) > 80 {
		summary = summary[:80] + "…"
	}
	return summary
}

func (e entry) FilterValue() string { return e.item.Title }

// App is the root Bubble Tea model. The current feed, the selection and the
// read set are owned here and mutated only inside Update.
type App struct {
	fetcher  feedFetcher
	input    textinput.Model
	list     list.Model
	viewport viewport.Model
	spinner  spinner.Model
	keys     keyMap
	read     *ReadSet
	renderer *glamour.TermRenderer

	feed     *Feed
	feedURL  string
	session  session
	fetching bool
	status   string
	err      error
	width    int
	height   int
}

func NewApp(fetcher feedFetcher, initialURL string) *App {
	ti := textinput.New()
	ti.Placeholder = "Enter RSS feed URL and press Enter…"
	ti.Prompt = "❯ "
	ti.SetValue(initialURL)
	ti.Focus()

	li := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	li.Title = "Items"
	li.SetShowStatusBar(false)
	li.SetFilteringEnabled(false)
	li.SetShowHelp(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	app := &App{
		fetcher:  fetcher,
		input:    ti,
		list:     li,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		keys:     defaultKeyMap(),
		read:     NewReadSet(),
		session:  sessionEditing,
		status:   "Enter an RSS feed URL to get started",
	}
	if initialURL != "" {
		app.fetching = true
		app.status = "Loading feed: " + initialURL + "…"
	}
	return app
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if a.fetching {
		cmds = append(cmds, a.spinner.Tick, a.fetchCmd(strings.TrimSpace(a.input.Value())))
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.setSize(msg.Width, msg.Height)
		return a, nil

	case spinner.TickMsg:
		if !a.fetching {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case feedLoadedMsg:
		return a.handleFeedLoaded(msg)

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	if a.session == sessionEditing {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

// handleFeedLoaded installs a fetched feed, or surfaces the failure and keeps
// whatever was on screen. List items, selection and read set change together
// so the shell never shows half old, half new state.
func (a *App) handleFeedLoaded(msg feedLoadedMsg) (tea.Model, tea.Cmd) {
	a.fetching = false
	if msg.err != nil {
		a.err = msg.err
		return a, nil
	}
	a.err = nil
	feed := msg.feed
	a.feed = &feed
	a.feedURL = msg.url
	a.read.Clear()
	items := make([]list.Item, len(feed.Items))
	for i, it := range feed.Items {
		items[i] = entry{item: it, read: a.read}
	}
	a.list.SetItems(items)
	a.list.ResetSelected()
	a.viewport.SetContent("")
	a.session = sessionList
	a.input.Blur()
	a.input.SetValue(msg.url)
	a.status = fmt.Sprintf("Loaded: %s · %s · %d items", feed.Title, feed.Kind, len(feed.Items))
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	switch a.session {
	case sessionEditing:
		return a.handleEditingKey(msg)
	case sessionList:
		return a.handleListKey(msg)
	case sessionDetail:
		return a.handleDetailKey(msg)
	}
	return a, nil
}

func (a *App) handleEditingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		return a, a.submit()
	case tea.KeyEsc:
		// Nowhere further back to go. Keep editing.
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Refresh):
		return a, a.refresh()
	case key.Matches(msg, a.keys.Escape):
		a.focusInput()
		return a, nil
	case key.Matches(msg, a.keys.Select):
		return a, a.selectCurrent()
	}
	var cmd tea.Cmd
	a.list, cmd = a.list.Update(msg)
	return a, cmd
}

func (a *App) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Refresh):
		return a, a.refresh()
	case key.Matches(msg, a.keys.Escape):
		a.focusInput()
		return a, nil
	}
	switch msg.String() {
	case "up", "down":
		// The list keeps driving the detail pane while it is focused.
		var cmd tea.Cmd
		a.list, cmd = a.list.Update(msg)
		a.showSelected()
		return a, cmd
	}
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

// submit starts a fetch of whatever is in the URL field. An empty field is an
// input error; a fetch already in flight wins over a new request.
func (a *App) submit() tea.Cmd {
	if a.fetching {
		return nil
	}
	URL := strings.TrimSpace(a.input.Value())
	if URL == "" {
		a.err = &InputError{}
		return nil
	}
	return a.startFetch(URL)
}

// refresh re-fetches the current URL. Requests made while a fetch is in
// flight are ignored rather than queued.
func (a *App) refresh() tea.Cmd {
	if a.fetching || a.feedURL == "" {
		return nil
	}
	return a.startFetch(a.feedURL)
}

func (a *App) startFetch(URL string) tea.Cmd {
	a.fetching = true
	a.err = nil
	a.status = "Loading feed: " + URL + "…"
	return tea.Batch(a.spinner.Tick, a.fetchCmd(URL))
}

func (a *App) fetchCmd(URL string) tea.Cmd {
	return func() tea.Msg {
		feed, err := a.fetcher.Fetch(URL)
		return feedLoadedMsg{url: URL, feed: feed, err: err}
	}
}

func (a *App) selectCurrent() tea.Cmd {
	e, ok := a.list.SelectedItem().(entry)
	if !ok {
		return nil
	}
	a.read.MarkRead(e.item.Link)
	a.session = sessionDetail
	a.showSelected()
	return nil
}

func (a *App) showSelected() {
	e, ok := a.list.SelectedItem().(entry)
	if !ok {
		return
	}
	a.read.MarkRead(e.item.Link)
	a.viewport.SetContent(a.renderDetail(e.item))
	a.viewport.GotoTop()
}

func (a *App) focusInput() {
	a.session = sessionEditing
	a.input.Focus()
	a.input.CursorEnd()
}

func (a *App) setSize(width, height int) {
	a.width = width
	a.height = height
	inputHeight := 3
	statusHeight := 1
	bodyHeight := height - inputHeight - statusHeight
	if bodyHeight < 0 {
		bodyHeight = 0
	}
	listWidth := a.listWidth()
	a.input.Width = width - 6
	a.list.SetSize(listWidth, bodyHeight)
	a.viewport.Width = width - listWidth - 1
	a.viewport.Height = bodyHeight
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(a.viewport.Width-4, 20)),
	)
	if err == nil {
		a.renderer = r
	}
	if a.session == sessionDetail {
		a.showSelected()
	}
}

func (a *App) listWidth() int {
	w := a.width * 2 / 5
	if w < 30 {
		w = 30
	}
	if w > a.width {
		w = a.width
	}
	return w
}

func (a *App) renderDetail(item Item) string {
	published := "unknown"
	if !item.Published.IsZero() {
		published = item.Published.Format("Mon, 02 Jan 2006 15:04")
	}
	md := fmt.Sprintf("# %s\n\n🔗 %s\n\n📅 %s\n\n%s\n", item.Title, item.Link, published, item.Summary)
	if a.renderer == nil {
		return md
	}
	out, err := a.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

func (a *App) View() string {
	input := inputBarStyle.Width(max(a.width-2, 0)).Render(a.input.View())

	var detail string
	if a.viewport.Height > 0 && strings.TrimSpace(a.viewport.View()) != "" {
		detail = a.viewport.View()
	} else if a.feed == nil {
		detail = placeholderStyle.Render("No feed loaded")
	} else {
		detail = placeholderStyle.Render("Select an item to read it")
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		listPaneStyle.Render(a.list.View()),
		detail,
	)

	return lipgloss.JoinVertical(lipgloss.Left, input, body, a.statusBar())
}

func (a *App) statusBar() string {
	if a.err != nil {
		return errorStyle.Render("Error: " + a.err.Error())
	}
	status := a.status
	if a.fetching {
		status = a.spinner.View() + " " + status
	} else if a.feed != nil {
		unread := len(a.feed.Items) - a.read.Len()
		if unread > 0 {
			status += fmt.Sprintf(" · %d unread", unread)
		}
	}
	return statusStyle.Render(status + "  [↑↓] navigate · [enter] select · [r] refresh · [esc] edit url · [q] quit")
}
