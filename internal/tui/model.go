// Package tui is the terminal gallery browser: a scrolling grid of photos
// fed by a pagination controller, and a detail view per photo.
//
// The model renders only from the controller's snapshot. Loads are started
// by a scroll trigger watching the grid's sentinel row, by the retry and
// refresh keys, and by window resizes.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
	"github.com/Sternrassler/picsum-gallery/pkg/photo"
	"github.com/Sternrassler/picsum-gallery/pkg/scroll"
)

const (
	cellWidth = 30

	// header (title, blank) and footer (status, help)
	chromeLines = 4

	defaultWidth  = 80
	defaultHeight = 24
)

// Gallery is the controller side of the browser.
type Gallery interface {
	scroll.Loader
	Refresh(ctx context.Context) error
}

// PhotoLookup resolves a photo for the detail view.
type PhotoLookup interface {
	GetPhoto(ctx context.Context, id string) (photo.Photo, error)
}

// Options configures a Model.
type Options struct {
	Links photo.Links
	// Margin is the scroll trigger's pre-trigger distance in rows.
	// Negative selects scroll.DefaultMargin.
	Margin int
	// Lookup refreshes a photo when its detail view opens. Nil shows the
	// grid's copy as is.
	Lookup PhotoLookup
	// PhotoID opens the detail view for this photo on start.
	PhotoID string
}

type mountMsg struct{}

type loadDoneMsg struct{ err error }

type refreshDoneMsg struct{ err error }

type photoMsg struct {
	id    string
	photo photo.Photo
	err   error
}

type detailState struct {
	id      string
	photo   *photo.Photo
	loading bool
	err     error
}

// Model is the bubbletea model for the browser.
type Model struct {
	ctx     context.Context
	gallery Gallery
	trigger *scroll.Trigger
	lookup  PhotoLookup
	links   photo.Links

	styles  Styles
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	width  int
	height int
	cursor int
	offset int

	snap    pagination.Snapshot
	pending int
	detail  *detailState
}

// New creates a browser over gallery. ctx bounds every load the browser
// starts.
func New(ctx context.Context, gallery Gallery, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Primary)

	m := Model{
		ctx:     ctx,
		gallery: gallery,
		trigger: scroll.New(gallery, opts.Margin),
		lookup:  opts.Lookup,
		links:   opts.Links,
		styles:  DefaultStyles(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		width:   defaultWidth,
		height:  defaultHeight,
		snap:    gallery.Snapshot(),
	}
	if opts.PhotoID != "" {
		m.detail = &detailState{id: opts.PhotoID, loading: opts.Lookup != nil}
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, func() tea.Msg { return mountMsg{} }}
	if m.detail != nil {
		cmds = append(cmds, m.fetchPhoto(m.detail.id))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case mountMsg:
		cmd := m.observe()
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.sync()
		cmd := m.observe()
		return m, cmd

	case loadDoneMsg:
		m.pending--
		m.sync()
		if msg.err != nil {
			return m, nil
		}
		cmd := m.observe()
		return m, cmd

	case refreshDoneMsg:
		m.pending--
		m.cursor, m.offset = 0, 0
		m.sync()
		if msg.err != nil {
			return m, nil
		}
		cmd := m.observe()
		return m, cmd

	case photoMsg:
		if m.detail == nil || m.detail.id != msg.id {
			return m, nil
		}
		m.detail.loading = false
		m.detail.err = msg.err
		if msg.err == nil {
			p := msg.photo
			m.detail.photo = &p
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.detail != nil {
			return m.updateDetail(msg)
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.columns()
	page := cols * m.gridHeight()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.move(-cols)
	case key.Matches(msg, m.keys.Down):
		m.move(cols)
	case key.Matches(msg, m.keys.Left):
		m.move(-1)
	case key.Matches(msg, m.keys.Right):
		m.move(1)
	case key.Matches(msg, m.keys.PageUp):
		m.move(-page)
	case key.Matches(msg, m.keys.PageDn):
		m.move(page)
	case key.Matches(msg, m.keys.Top):
		m.move(-len(m.snap.Items))
	case key.Matches(msg, m.keys.Bottom):
		m.move(len(m.snap.Items))
	case key.Matches(msg, m.keys.Open):
		if len(m.snap.Items) == 0 {
			return m, nil
		}
		p := m.snap.Items[m.cursor]
		m.detail = &detailState{id: p.ID, photo: &p}
		if m.lookup != nil {
			m.detail.loading = true
			return m, m.fetchPhoto(p.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Retry):
		return m.retry()
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.refresh()
		return m, cmd
	default:
		return m, nil
	}
	cmd := m.observe()
	return m, cmd
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.detail = nil
		cmd := m.observe()
		return m, cmd
	case key.Matches(msg, m.keys.Retry):
		if m.detail.err != nil && m.lookup != nil {
			m.detail.loading = true
			m.detail.err = nil
			return m, m.fetchPhoto(m.detail.id)
		}
	}
	return m, nil
}

// retry repeats the failed load. With nothing shown yet the gallery starts
// over; otherwise the failed page is requested again.
func (m Model) retry() (tea.Model, tea.Cmd) {
	if m.snap.Err == nil {
		return m, nil
	}
	if len(m.snap.Items) == 0 {
		cmd := m.refresh()
		return m, cmd
	}
	m.pending++
	gallery, ctx := m.gallery, m.ctx
	return m, func() tea.Msg {
		return loadDoneMsg{err: gallery.LoadNext(ctx)}
	}
}

func (m *Model) refresh() tea.Cmd {
	m.pending++
	gallery, ctx := m.gallery, m.ctx
	return func() tea.Msg {
		return refreshDoneMsg{err: gallery.Refresh(ctx)}
	}
}

func (m Model) fetchPhoto(id string) tea.Cmd {
	lookup, ctx := m.lookup, m.ctx
	if lookup == nil {
		return nil
	}
	return func() tea.Msg {
		p, err := lookup.GetPhoto(ctx, id)
		return photoMsg{id: id, photo: p, err: err}
	}
}

// observe reports the grid viewport to the trigger and returns a command
// waiting for the load it started, if any.
func (m *Model) observe() tea.Cmd {
	if m.detail != nil {
		return nil
	}
	result := m.trigger.Observe(m.ctx, m.viewport())
	if result == nil {
		return nil
	}
	m.pending++
	return func() tea.Msg {
		return loadDoneMsg{err: <-result}
	}
}

func (m *Model) sync() {
	m.snap = m.gallery.Snapshot()
	m.move(0)
}

func (m *Model) move(delta int) {
	n := len(m.snap.Items)
	m.cursor += delta
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	row := m.cursor / m.columns()
	height := m.gridHeight()
	if row < m.offset {
		m.offset = row
	}
	if row >= m.offset+height {
		m.offset = row - height + 1
	}
}

func (m Model) columns() int {
	return max(1, m.width/cellWidth)
}

func (m Model) gridHeight() int {
	return max(1, m.height-chromeLines)
}

func (m Model) rows() int {
	cols := m.columns()
	return (len(m.snap.Items) + cols - 1) / cols
}

func (m Model) viewport() scroll.Viewport {
	return scroll.Viewport{
		Offset: m.offset,
		Height: m.gridHeight(),
		Total:  m.rows(),
	}
}

func (m Model) loading() bool {
	return m.pending > 0 || m.snap.IsFetching
}

// View implements tea.Model.
func (m Model) View() string {
	if m.detail != nil {
		return m.viewDetail()
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Photo gallery"))
	b.WriteString("  ")
	b.WriteString(m.styles.Subtle.Render(fmt.Sprintf("Showing %d photos", len(m.snap.Items))))
	b.WriteString("\n\n")

	switch {
	case len(m.snap.Items) == 0 && m.snap.Err != nil && !m.loading():
		b.WriteString(m.styles.Error.Render(m.snap.Message))
		b.WriteString("\n")
		b.WriteString(m.styles.Subtle.Render("Press r to try again."))
		b.WriteString("\n")
	case len(m.snap.Items) == 0 && m.loading():
		b.WriteString(m.spinner.View() + " Loading beautiful photos...\n")
	case len(m.snap.Items) == 0 && !m.snap.HasMore:
		b.WriteString("No photos found\n")
		b.WriteString(m.styles.Subtle.Render("We couldn't find any photos to display. Press R to try again."))
		b.WriteString("\n")
	default:
		b.WriteString(m.viewGrid())
		b.WriteString(m.viewStatus())
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) viewGrid() string {
	cols := m.columns()
	rows := m.rows()
	end := min(rows, m.offset+m.gridHeight())

	var b strings.Builder
	for row := m.offset; row < end; row++ {
		cells := make([]string, 0, cols)
		for col := range cols {
			i := row*cols + col
			if i >= len(m.snap.Items) {
				break
			}
			p := m.snap.Items[i]
			label := fmt.Sprintf("#%s %s", p.ID, p.Author)
			if i == m.cursor {
				cells = append(cells, m.styles.Selected.Render(label))
			} else {
				cells = append(cells, m.styles.Cell.Render(label))
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewStatus() string {
	switch {
	case m.loading():
		return m.spinner.View() + " Loading more photos...\n"
	case m.snap.Err != nil:
		return m.styles.Error.Render("Failed to load more photos: "+m.snap.Message) +
			m.styles.Subtle.Render(" (r to try again)") + "\n"
	case !m.snap.HasMore:
		return m.styles.End.Render("You've reached the end!") + "\n"
	default:
		return "\n"
	}
}

func (m Model) viewDetail() string {
	d := m.detail

	var b strings.Builder
	b.WriteString(m.styles.Subtle.Render("esc back"))
	b.WriteString("\n\n")

	if d.photo == nil {
		switch {
		case d.loading:
			b.WriteString(m.spinner.View() + " Loading photo details...\n")
		case d.err != nil:
			b.WriteString(m.styles.Error.Render("Photo Not Found"))
			b.WriteString("\n")
			b.WriteString(m.styles.Subtle.Render(d.err.Error()))
			b.WriteString("\n")
		}
		return b.String()
	}

	v := m.links.View(*d.photo)
	b.WriteString(m.styles.Title.Render(v.Title))
	b.WriteString("\n")
	b.WriteString("by " + v.Author + "\n\n")

	b.WriteString(m.styles.Title.Render("Photo Details"))
	b.WriteString("\n")
	b.WriteString(m.row("Photo ID", "#"+v.ID))
	b.WriteString(m.row("Photographer", v.Author))
	b.WriteString(m.row("Dimensions", v.Dimensions))
	b.WriteString(m.row("Aspect Ratio", v.AspectRatio))
	b.WriteString("\n")

	b.WriteString(m.styles.Title.Render("Links"))
	b.WriteString("\n")
	b.WriteString(m.row("Full size", m.styles.Link.Render(v.FullSize)))
	b.WriteString(m.row("Download", m.styles.Link.Render(v.Download)))
	b.WriteString(m.row("View on Picsum", m.styles.Link.Render(v.Source)))

	if d.loading {
		b.WriteString("\n" + m.spinner.View() + " Refreshing...\n")
	}
	if d.err != nil {
		b.WriteString("\n" + m.styles.Error.Render(d.err.Error()) + "\n")
	}
	return b.String()
}

func (m Model) row(label, value string) string {
	return "  " + m.styles.Label.Render(label) + value + "\n"
}
