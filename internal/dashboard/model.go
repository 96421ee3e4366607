package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/smileynet/wopt/internal/api"
	"github.com/smileynet/wopt/internal/tier"
	"github.com/smileynet/wopt/internal/weapon"
)

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// borderChrome is the number of lines consumed by top + bottom borders.
const borderChrome = 2

// togglesHeight is the number of right-pane lines above the results viewport.
const togglesHeight = 3

// Model is the root Bubble Tea model for the dashboard TUI.
// It manages a two-pane optimizer layout and a full-width tier-list view.
type Model struct {
	mode     Mode
	focus    Focus
	width    int
	height   int
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model

	ctx     context.Context
	backend Backend
	ready   ReadyFunc
	logger  *slog.Logger
	target  string

	readying bool
	readyErr error

	picker  pickerState
	toggles togglesState
	results resultsState
	tiers   tierState

	data       weapon.DataMap
	dataLoaded bool
	classes    weapon.Classes
	tierCache  *Cache

	preselect *Preselect
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the context passed to backend calls.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithReady makes the dashboard wait for fn before loading the catalog.
func WithReady(fn ReadyFunc) Option {
	return func(m *Model) { m.ready = fn }
}

// WithClasses sets the weapon class table used to split the tier lists.
func WithClasses(c weapon.Classes) Option {
	return func(m *Model) { m.classes = c }
}

// WithPreselect opens the optimizer on a weapon and configuration once the
// catalog has loaded.
func WithPreselect(p Preselect) Option {
	return func(m *Model) { m.preselect = &p }
}

// WithMode sets the initial view mode.
func WithMode(mode Mode) Option {
	return func(m *Model) { m.mode = mode }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// WithRefreshTarget sets the recomputation target used by the tier view.
func WithRefreshTarget(target string) Option {
	return func(m *Model) { m.target = target }
}

// NewModel creates a dashboard Model in optimize mode with left-pane focus.
func NewModel(backend Backend, opts ...Option) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		mode:      ModeOptimize,
		focus:     PaneLeft,
		viewport:  viewport.New(0, 0),
		help:      help.New(),
		spinner:   s,
		ctx:       context.Background(),
		backend:   backend,
		logger:    slog.New(slog.DiscardHandler),
		target:    api.TargetAll,
		picker:    newPickerState(),
		toggles:   newTogglesState(),
		tiers:     newTierState(),
		tierCache: NewCache(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.readying = m.ready != nil
	if m.preselect != nil {
		m.toggles = m.toggles.setHitChance(m.preselect.HitChance)
		m.toggles.buffs = m.preselect.Buffs
	}
	return m
}

// Init waits for readiness (when configured) or loads the catalog.
func (m Model) Init() tea.Cmd {
	if m.readying {
		return tea.Batch(waitReady(m.ctx, m.ready), m.spinner.Tick)
	}
	return tea.Batch(loadCatalog(m.ctx, m.backend), m.spinner.Tick)
}

// waitReady returns a tea.Cmd that blocks on fn and wraps the result in a ReadyMsg.
func waitReady(ctx context.Context, fn ReadyFunc) tea.Cmd {
	return func() tea.Msg {
		return ReadyMsg{Err: fn(ctx)}
	}
}

// loadCatalog returns a tea.Cmd that fetches the weapon list and the
// snapshot concurrently. A failed list falls back to the snapshot's names;
// a failed snapshot leaves the picker usable and only the tier view errored.
func loadCatalog(ctx context.Context, b Backend) tea.Cmd {
	return func() tea.Msg {
		var (
			names             []string
			data              weapon.DataMap
			namesErr, dataErr error
			g                 errgroup.Group
		)
		g.Go(func() error {
			names, namesErr = b.Weapons(ctx)
			return nil
		})
		g.Go(func() error {
			data, dataErr = b.WeaponData(ctx, false)
			return nil
		})
		_ = g.Wait()

		switch {
		case namesErr != nil && dataErr != nil:
			return CatalogMsg{Err: namesErr}
		case namesErr != nil:
			return CatalogMsg{Weapons: data.Names(), Data: data}
		case dataErr != nil:
			return CatalogMsg{Weapons: names, Err: dataErr}
		}
		return CatalogMsg{Weapons: names, Data: data}
	}
}

// optimize returns a tea.Cmd that runs req and tags the answer with seq.
func optimize(ctx context.Context, b Backend, seq int, req weapon.Request) tea.Cmd {
	return func() tea.Msg {
		r, err := b.Optimize(ctx, req)
		return ResultMsg{Seq: seq, Request: req, Result: r, Err: err}
	}
}

// refreshSnapshot returns a tea.Cmd that triggers recomputation of target
// and refetches the snapshot.
func refreshSnapshot(ctx context.Context, b Backend, target string) tea.Cmd {
	return func() tea.Msg {
		data, err := b.Refresh(ctx, target)
		return SnapshotMsg{Data: data, Err: err}
	}
}

// Update handles incoming messages with mode-based routing.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		_, rightWidth := PaneWidths(msg.Width)
		m.viewport.Width = max(rightWidth-borderChrome, 0)
		m.viewport.Height = max(m.contentHeight()-togglesHeight, 1)
		return m, nil

	case ReadyMsg:
		m.readying = false
		if msg.Err != nil {
			m.readyErr = msg.Err
			return m, nil
		}
		m.readyErr = nil
		return m, loadCatalog(m.ctx, m.backend)

	case CatalogMsg:
		return m.applyCatalog(msg)

	case ResultMsg:
		var applied bool
		m.results, applied = m.results.apply(msg)
		if !applied {
			m.logger.Debug("dropping superseded result", "key", msg.Request.Key(), "seq", msg.Seq)
			return m, nil
		}
		m.viewport.SetContent(m.results.View(""))
		m.viewport.GotoTop()
		return m, nil

	case SnapshotMsg:
		m.tiers.refreshing = false
		if msg.Err != nil {
			m.tiers.err = msg.Err
			return m, nil
		}
		m.tiers.err = nil
		m.data = msg.Data
		m.dataLoaded = true
		m.tierCache.Invalidate()
		return m, nil

	case OpenWeaponMsg:
		m.mode = ModeOptimize
		m.focus = PaneLeft
		m.toggles = m.toggles.setHitChance(msg.HitChance)
		m.toggles.buffs = msg.Buffs
		var ok bool
		m.picker, ok = m.picker.selectName(msg.Weapon)
		if !ok {
			return m, nil
		}
		return m.startOptimize()

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// applyCatalog installs the loaded catalog and applies any deep-link preselection.
func (m Model) applyCatalog(msg CatalogMsg) (tea.Model, tea.Cmd) {
	if msg.Weapons == nil && msg.Err != nil {
		m.picker = m.picker.applyWeapons(nil, msg.Err)
	} else {
		m.picker = m.picker.applyWeapons(msg.Weapons, nil)
	}

	if msg.Data != nil || msg.Err == nil {
		m.data = msg.Data
		m.dataLoaded = true
		m.tiers.err = nil
	} else {
		m.tiers.err = msg.Err
	}
	m.tierCache.Invalidate()

	if m.preselect == nil || m.picker.err != nil {
		return m, nil
	}
	p := *m.preselect
	m.preselect = nil
	var ok bool
	m.picker, ok = m.picker.selectName(p.Weapon)
	if !ok {
		m.logger.Warn("preselected weapon not in catalog", "weapon", p.Weapon)
		return m, nil
	}
	return m.startOptimize()
}

// startOptimize issues an optimize request for the selected weapon with the
// current toggles. The previous request, if still in flight, is superseded.
func (m Model) startOptimize() (tea.Model, tea.Cmd) {
	name := m.picker.Selected()
	if name == "" {
		return m, nil
	}
	req := m.toggles.Request(name)
	m.results = m.results.start(req)
	return m, tea.Batch(optimize(m.ctx, m.backend, m.results.seq, req), m.spinner.Tick)
}

// busy reports whether anything is loading, so the spinner keeps ticking.
func (m Model) busy() bool {
	if m.readying || m.picker.loading || m.results.loading || m.tiers.refreshing {
		return true
	}
	return !m.dataLoaded && m.tiers.err == nil
}

// handleKey processes key messages with global and mode-specific routing.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.mode == ModeOptimize && m.picker.filtering {
		var cmd tea.Cmd
		m.picker, _, cmd = m.picker.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.readyErr != nil {
		if msg.String() == "r" {
			m.readying = true
			m.readyErr = nil
			return m, tea.Batch(waitReady(m.ctx, m.ready), m.spinner.Tick)
		}
		return m, nil
	}

	if m.mode == ModeTiers {
		return m.handleTierKey(msg)
	}
	return m.handleOptimizeKey(msg)
}

func (m Model) handleOptimizeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		if m.focus == PaneLeft {
			m.focus = PaneRight
		} else {
			m.focus = PaneLeft
		}
		return m, nil
	case "t":
		m.mode = ModeTiers
		return m, nil
	case "r":
		if m.picker.err != nil {
			m.picker = newPickerState()
			return m, tea.Batch(loadCatalog(m.ctx, m.backend), m.spinner.Tick)
		}
		if m.results.err != nil {
			return m.startOptimize()
		}
		return m, nil
	case "left", "h":
		m.toggles = m.toggles.stepHit(-1)
		return m, nil
	case "right", "l":
		m.toggles = m.toggles.stepHit(1)
		return m, nil
	case "v":
		m.toggles = m.toggles.toggle(weapon.BuffValby)
		return m, nil
	case "g":
		m.toggles = m.toggles.toggle(weapon.BuffGley)
		return m, nil
	case "e":
		m.toggles = m.toggles.toggle(weapon.BuffEnzo)
		return m, nil
	case "o":
		return m.startOptimize()
	}

	if m.focus == PaneRight {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var (
		selected bool
		cmd      tea.Cmd
	)
	m.picker, selected, cmd = m.picker.Update(msg)
	if selected {
		return m.startOptimize()
	}
	return m, cmd
}

func (m Model) handleTierKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "t", "esc":
		m.mode = ModeOptimize
		return m, nil
	case "r":
		if m.tiers.err != nil && !m.tiers.refreshing {
			m.tiers.err = nil
			m.dataLoaded = false
			return m, tea.Batch(reloadSnapshot(m.ctx, m.backend), m.spinner.Tick)
		}
		return m, nil
	case "R":
		if m.tiers.refreshing {
			return m, nil
		}
		m.tiers.refreshing = true
		m.tiers.err = nil
		return m, tea.Batch(refreshSnapshot(m.ctx, m.backend, m.target), m.spinner.Tick)
	}

	if !m.dataLoaded {
		return m, nil
	}
	var cmd tea.Cmd
	m.tiers, cmd = m.tiers.Update(msg, m.currentList())
	return m, cmd
}

// reloadSnapshot returns a tea.Cmd that refetches the snapshot, bypassing the cache.
func reloadSnapshot(ctx context.Context, b Backend) tea.Cmd {
	return func() tea.Msg {
		data, err := b.WeaponData(ctx, true)
		return SnapshotMsg{Data: data, Err: err}
	}
}

// currentList returns the tier list for the active tab and mode.
func (m Model) currentList() tier.List {
	return buildList(m.tierCache, m.data, m.classes, m.tiers.Kind(), m.tiers.Mode())
}

// contentHeight returns the usable height for pane content,
// accounting for border chrome and the help bar.
func (m Model) contentHeight() int {
	return max(m.height-borderChrome-helpBarHeight, 1)
}

// View renders the active mode with the help bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	helpView := m.help.View(HelpBindings(m.mode, m.picker.filtering))

	if m.readying || m.readyErr != nil {
		body := fmt.Sprintf("%s Preparing server...", m.spinner.View())
		if m.readyErr != nil {
			body = fmt.Sprintf("Server not ready: %s\n\nPress r to retry", m.readyErr)
		}
		box := FocusedBorder().Width(m.width - borderChrome).Height(m.contentHeight()).Render(body)
		return lipgloss.JoinVertical(lipgloss.Left, box, helpView)
	}

	if m.mode == ModeTiers {
		innerWidth := m.width - borderChrome
		var l tier.List
		if m.dataLoaded {
			l = m.currentList()
		}
		body := m.tiers.View(l, m.dataLoaded, innerWidth, m.contentHeight(), m.spinner.View())
		box := FocusedBorder().Width(innerWidth).Height(m.contentHeight()).Render(body)
		return lipgloss.JoinVertical(lipgloss.Left, box, helpView)
	}

	leftWidth, rightWidth := PaneWidths(m.width)
	contentHeight := m.contentHeight()

	var leftStyle, rightStyle lipgloss.Style
	if m.focus == PaneLeft {
		leftStyle = FocusedBorder()
		rightStyle = UnfocusedBorder()
	} else {
		leftStyle = UnfocusedBorder()
		rightStyle = FocusedBorder()
	}

	leftStyle = leftStyle.
		Width(leftWidth - borderChrome).
		Height(contentHeight)
	rightStyle = rightStyle.
		Width(rightWidth - borderChrome).
		Height(contentHeight)

	leftPane := leftStyle.Render(m.picker.View(leftWidth-borderChrome, contentHeight, m.spinner.View()))
	rightPane := rightStyle.Render(m.viewRight())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	return lipgloss.JoinVertical(lipgloss.Left, panes, helpView)
}

// viewRight renders the toggles above the results viewport.
func (m Model) viewRight() string {
	top := m.toggles.View() + "\n"
	if m.results.loading || m.results.result == nil {
		return top + "\n" + m.results.View(m.spinner.View())
	}
	return top + "\n" + m.viewport.View()
}
