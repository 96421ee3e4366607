package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/wopt"
	"github.com/smileynet/wopt/internal/api"
	"github.com/smileynet/wopt/internal/cache"
	"github.com/smileynet/wopt/internal/changelog"
	"github.com/smileynet/wopt/internal/config"
	"github.com/smileynet/wopt/internal/dashboard"
	"github.com/smileynet/wopt/internal/export"
	"github.com/smileynet/wopt/internal/logging"
	"github.com/smileynet/wopt/internal/prefetch"
	"github.com/smileynet/wopt/internal/tier"
	"github.com/smileynet/wopt/internal/tui"
	"github.com/smileynet/wopt/internal/weapon"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Globals are flags shared by every command. They override config files
// and environment variables.
type Globals struct {
	URL      string `help:"Optimization API base URL." name:"url" placeholder:"URL"`
	NoCache  bool   `help:"Keep the cache in memory only for this invocation."`
	LogLevel string `help:"Log level (debug, info, warn, error)." placeholder:"LEVEL"`
}

// CLI is the top-level command structure for wopt.
type CLI struct {
	Globals

	Version   kong.VersionFlag `help:"Show version." short:"V"`
	UI        UICmd            `cmd:"" help:"Open the interactive optimizer."`
	Weapons   WeaponsCmd       `cmd:"" help:"List weapons."`
	Optimize  OptimizeCmd      `cmd:"" help:"Optimize one weapon configuration."`
	Tiers     TiersCmd         `cmd:"" help:"Print or export tier lists."`
	Prefetch  PrefetchCmd      `cmd:"" help:"Warm the result cache for a plan of configurations."`
	Refresh   RefreshCmd       `cmd:"" help:"Ask the backend to recompute its weapon data."`
	Cache     CacheCmd         `cmd:"" help:"Inspect or clear the local cache."`
	Changelog ChangelogCmd     `cmd:"" help:"Show release notes."`
}

// loadConfig loads layered config from user and project paths, then applies
// env overrides and global flags.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(config.Paths()...)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if g.URL != "" {
		cfg.API.BaseURL = g.URL
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.NoCache {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds the dependencies commands are wired from.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	api      *api.Client
	client   *cache.CachedClient
	closeLog func() error
}

// open loads config and builds the logger, API client and cache. Logs go to
// logTo unless a log file is configured; nil discards them.
func (g *Globals) open(logTo io.Writer) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logTo)
}

func newApp(cfg *config.Config, logTo io.Writer) (*app, error) {
	logger, closeLog, err := logging.New(cfg.Log, logTo)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithBusyRetries(cfg.API.BusyRetries),
		api.WithMaxRetryDelay(cfg.API.MaxRetryDelay),
		api.WithUserAgent(cfg.API.UserAgent+"/"+version),
		api.WithLogger(logger),
	)

	var storage cache.Storage = cache.NewMemoryStorage()
	if cfg.Cache.Enabled {
		storage = cache.NewFileStorage(cfg.Cache.Dir)
	}
	store := cache.NewStore(storage, cache.WithTTL(cfg.Cache.TTL), cache.WithStoreLogger(logger))

	return &app{
		cfg:      cfg,
		logger:   logger,
		api:      client,
		client:   cache.NewCachedClient(client, store, logger),
		closeLog: closeLog,
	}, nil
}

func (a *app) close() {
	if err := a.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing log: %s\n", err)
	}
}

// resources returns the overlay of project-local files over the embedded defaults.
func resources() fs.FS {
	return wopt.OverlayFS(wopt.LocalDir, wopt.Resources)
}

// interruptible returns a context cancelled on Ctrl+C.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// --- UI command ---

// UICmd opens the dashboard. The flags preselect its state.
type UICmd struct {
	Weapon    string  `help:"Open the optimizer on this weapon."`
	HitChance float64 `help:"Weak-point hit chance to preselect." default:"1"`
	Valby     bool    `help:"Preselect the Valby buff." xor:"buff"`
	Gley      bool    `help:"Preselect the Gley buff." xor:"buff"`
	Enzo      bool    `help:"Preselect the Enzo buff." xor:"buff"`
	Tiers     bool    `help:"Start on the tier lists."`
	NoWait    bool    `help:"Skip waiting for the server to report ready."`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the dashboard TUI.
func (c *UICmd) Run(g *Globals) error {
	if !tui.IsTTY(os.Stdout) {
		return errors.New("ui: requires a terminal (TTY); use optimize or tiers for plain output")
	}

	// The TUI owns the screen: log to the configured file or nowhere.
	a, err := g.open(nil)
	if err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	defer a.close()

	classes, err := weapon.LoadClasses(resources())
	if err != nil {
		return fmt.Errorf("ui: %w", err)
	}

	ctx, stop := interruptible()
	defer stop()

	var ready dashboard.ReadyFunc
	if !c.NoWait {
		poll := a.cfg.API.ReadyPoll
		ready = func(ctx context.Context) error { return a.api.WaitReady(ctx, poll) }
	}
	opts, err := c.options(ready)
	if err != nil {
		return err
	}
	opts = append(opts,
		dashboard.WithContext(ctx),
		dashboard.WithClasses(classes),
		dashboard.WithLogger(a.logger),
	)

	m := dashboard.NewModel(a.client, opts...)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	return c.run(true, prog)
}

// options translates the flags into dashboard options.
func (c *UICmd) options(ready dashboard.ReadyFunc) ([]dashboard.Option, error) {
	if weapon.HitChanceIndex(c.HitChance) < 0 {
		return nil, fmt.Errorf("ui: %w", errHitChance(c.HitChance))
	}

	var opts []dashboard.Option
	if ready != nil {
		opts = append(opts, dashboard.WithReady(ready))
	}
	if c.Weapon != "" {
		opts = append(opts, dashboard.WithPreselect(dashboard.Preselect{
			Weapon:    c.Weapon,
			HitChance: c.HitChance,
			Buffs:     weapon.Buffs{Valby: c.Valby, Gley: c.Gley, Enzo: c.Enzo},
		}))
	}
	if c.Tiers {
		opts = append(opts, dashboard.WithMode(dashboard.ModeTiers))
	}
	return opts, nil
}

// run executes the tea program, enabling testable wiring.
func (c *UICmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return errors.New("ui: requires a terminal (TTY)")
	}
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}

// --- Weapons command ---

// WeaponsCmd lists weapon names.
type WeaponsCmd struct {
	Filter string `arg:"" optional:"" help:"Only list names containing this text."`
}

// weaponLister is the part of the cached client the weapons command needs.
type weaponLister interface {
	Weapons(ctx context.Context) ([]string, error)
}

// Run executes the weapons command.
func (c *WeaponsCmd) Run(g *Globals) error {
	a, err := g.open(os.Stderr)
	if err != nil {
		return fmt.Errorf("weapons: %w", err)
	}
	defer a.close()

	ctx, stop := interruptible()
	defer stop()
	return c.run(ctx, os.Stdout, a.client)
}

func (c *WeaponsCmd) run(ctx context.Context, w io.Writer, l weaponLister) error {
	names, err := l.Weapons(ctx)
	if err != nil {
		return fmt.Errorf("weapons: %w", err)
	}
	for _, wp := range weapon.Filter(weapon.FromNames(names), c.Filter) {
		_, _ = fmt.Fprintln(w, wp.Name)
	}
	return nil
}

// --- Optimize command ---

// OptimizeCmd optimizes a single configuration and prints the result.
type OptimizeCmd struct {
	Weapon    string  `arg:"" help:"Weapon name."`
	HitChance float64 `help:"Weak-point hit chance (0, 0.25, 0.33, 0.5, 0.67, 0.75, 1)." default:"1"`
	Valby     bool    `help:"Apply the Valby buff." xor:"buff"`
	Gley      bool    `help:"Apply the Gley buff." xor:"buff"`
	Enzo      bool    `help:"Apply the Enzo buff." xor:"buff"`
	JSON      bool    `help:"Print the raw result as JSON." name:"json"`
}

// optimizer is the part of the cached client the optimize command needs.
type optimizer interface {
	Optimize(ctx context.Context, req weapon.Request) (weapon.Result, error)
}

// Run executes the optimize command.
func (c *OptimizeCmd) Run(g *Globals) error {
	a, err := g.open(os.Stderr)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	defer a.close()

	ctx, stop := interruptible()
	defer stop()
	return c.run(ctx, os.Stdout, a.client)
}

func (c *OptimizeCmd) request() (weapon.Request, error) {
	if weapon.HitChanceIndex(c.HitChance) < 0 {
		return weapon.Request{}, errHitChance(c.HitChance)
	}
	buffs := weapon.Buffs{Valby: c.Valby, Gley: c.Gley, Enzo: c.Enzo}
	return weapon.NewRequest(c.Weapon, c.HitChance, buffs), nil
}

func (c *OptimizeCmd) run(ctx context.Context, w io.Writer, opt optimizer) error {
	req, err := c.request()
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	res, err := opt.Optimize(ctx, req)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	if c.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(w, req, res)
	return nil
}

// printResult renders a result the way the dashboard's results pane does, without styling.
func printResult(w io.Writer, req weapon.Request, r weapon.Result) {
	_, _ = fmt.Fprintf(w, "%s\nhit chance %s, buff %s\n\n", req.Weapon, weapon.FormatHitChance(req.HitChance), req.Buffs())
	_, _ = fmt.Fprintf(w, "Max DPS: %.2f\n\nBest rolls\n", r.MaxDPS)
	if len(r.BestRolls) == 0 {
		_, _ = fmt.Fprintln(w, "  none")
	}
	for _, roll := range r.BestRolls {
		_, _ = fmt.Fprintf(w, "  %s: %g\n", roll.RollType, roll.Value)
	}

	_, _ = fmt.Fprintln(w, "\nBest modules")
	modules := r.ModulesByContribution()
	if len(modules) == 0 {
		_, _ = fmt.Fprintln(w, "  none")
	}
	for _, mc := range modules {
		_, _ = fmt.Fprintf(w, "  %s (%s) %.2f\n", mc.Module.Name, mc.Module.ModuleType, mc.Contribution)
		for _, e := range mc.Module.Effects {
			_, _ = fmt.Fprintf(w, "      %s %g\n", e.EffectType, e.Value)
		}
	}
}

func errHitChance(h float64) error {
	choices := make([]string, len(weapon.HitChances))
	for i, c := range weapon.HitChances {
		choices[i] = weapon.FormatHitChance(c)
	}
	return fmt.Errorf("hit chance %s is not one of %s", weapon.FormatHitChance(h), strings.Join(choices, ", "))
}

// --- Tiers command ---

// TiersCmd prints one tier list or exports all of them to a spreadsheet.
type TiersCmd struct {
	List   string `help:"List to print (regular, sniper)." enum:"regular,sniper" default:"regular"`
	Mode   string `help:"List mode (regular: noValby, valby; sniper: none, valby, enzo). Defaults to the first."`
	Export string `help:"Write every list and mode to this .xlsx file instead of printing." type:"path" placeholder:"FILE"`
	Force  bool   `help:"Refetch the weapon data, bypassing the cache."`
}

// snapshotSource is the part of the cached client the tiers command needs.
type snapshotSource interface {
	WeaponData(ctx context.Context, force bool) (weapon.DataMap, error)
}

// Run executes the tiers command.
func (c *TiersCmd) Run(g *Globals) error {
	a, err := g.open(os.Stderr)
	if err != nil {
		return fmt.Errorf("tiers: %w", err)
	}
	defer a.close()

	classes, err := weapon.LoadClasses(resources())
	if err != nil {
		return fmt.Errorf("tiers: %w", err)
	}

	ctx, stop := interruptible()
	defer stop()
	return c.run(ctx, os.Stdout, a.client, classes)
}

func (c *TiersCmd) run(ctx context.Context, w io.Writer, src snapshotSource, classes weapon.Classes) error {
	kind, err := tier.ParseKind(c.List)
	if err != nil {
		return fmt.Errorf("tiers: %w", err)
	}
	mode := c.Mode
	if mode == "" {
		mode = kind.Modes()[0]
	}
	if c.Export == "" && !slices.Contains(kind.Modes(), mode) {
		return fmt.Errorf("tiers: list %s has no mode %q (modes: %s)", kind, mode, strings.Join(kind.Modes(), ", "))
	}

	data, err := src.WeaponData(ctx, c.Force)
	if err != nil {
		return fmt.Errorf("tiers: %w", err)
	}

	if c.Export != "" {
		lists := allLists(data, classes)
		if err := export.WriteTiersXLSX(c.Export, lists); err != nil {
			return fmt.Errorf("tiers: %w", err)
		}
		_, _ = fmt.Fprintf(w, "Wrote %d tier lists to %s\n", len(lists), c.Export)
		return nil
	}

	printList(w, tier.Build(data, classes, kind, mode))
	return nil
}

// allLists builds every list in every mode, regular lists first.
func allLists(data weapon.DataMap, classes weapon.Classes) []tier.List {
	var lists []tier.List
	for _, kind := range []tier.Kind{tier.Regular, tier.Sniper} {
		for _, mode := range kind.Modes() {
			lists = append(lists, tier.Build(data, classes, kind, mode))
		}
	}
	return lists
}

func printList(w io.Writer, l tier.List) {
	_, _ = fmt.Fprintf(w, "%s (%s)\n", l.Kind.Title(), l.Mode)
	if len(l.Entries) == 0 {
		_, _ = fmt.Fprintln(w, "\nNo weapon data for this list.")
		return
	}
	groups := tier.Group(l.Entries)
	for _, t := range tier.Order {
		entries := groups[t]
		if len(entries) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "\n%s\n", t)
		for _, e := range entries {
			_, _ = fmt.Fprintf(w, "  %-24s %12d  z=%+.2f\n", e.Weapon, e.DPS, e.Z)
		}
	}
}

// --- Refresh command ---

// RefreshCmd triggers backend recomputation and refetches the snapshot.
type RefreshCmd struct {
	Target string `arg:"" optional:"" default:"all" help:"What to recompute: all, a weapon name, or a weapon, bullet or module type."`
}

// refresher is the part of the cached client the refresh command needs.
type refresher interface {
	Refresh(ctx context.Context, target string) (weapon.DataMap, error)
}

// Run executes the refresh command.
func (c *RefreshCmd) Run(g *Globals) error {
	a, err := g.open(os.Stderr)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	defer a.close()

	ctx, stop := interruptible()
	defer stop()
	return c.run(ctx, os.Stdout, a.client)
}

func (c *RefreshCmd) run(ctx context.Context, w io.Writer, r refresher) error {
	data, err := r.Refresh(ctx, c.Target)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Recomputed %s; snapshot has %d weapons\n", c.Target, len(data))
	return nil
}

// --- Cache commands ---

// CacheCmd groups the cache subcommands.
type CacheCmd struct {
	Info  CacheInfoCmd  `cmd:"" help:"Show cached data and its freshness."`
	Clear CacheClearCmd `cmd:"" help:"Remove cached data."`
}

// CacheInfoCmd reports the state of each cached blob.
type CacheInfoCmd struct{}

// Run executes the cache info command.
func (c *CacheInfoCmd) Run(g *Globals) error {
	a, err := g.open(os.Stderr)
	if err != nil {
		return fmt.Errorf("cache info: %w", err)
	}
	defer a.close()

	dir := "(memory)"
	if a.cfg.Cache.Enabled {
		dir = a.cfg.Cache.Dir
	}
	return c.run(os.Stdout, dir, a.client.Store())
}

func (c *CacheInfoCmd) run(w io.Writer, dir string, store *cache.Store) error {
	_, _ = fmt.Fprintf(w, "Cache: %s (ttl %s)\n", dir, store.TTL())
	for _, info := range store.Info() {
		status := "absent"
		switch {
		case info.Present && info.Fresh:
			status = "fresh"
		case info.Present:
			status = "stale"
		}
		written := "-"
		if !info.Written.IsZero() {
			written = info.Written.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "  %-12s %-6s %5d items  written %s\n", info.Key, status, info.Items, written)
	}
	return nil
}

// CacheClearCmd removes cached data.
type CacheClearCmd struct {
	Results bool `help:"Only clear optimization results; keep the weapon list and snapshot."`
}

// Run executes the cache clear command.
func (c *CacheClearCmd) Run(g *Globals) error {
	a, err := g.open(os.Stderr)
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	defer a.close()
	return c.run(os.Stdout, a.client)
}

// cacheClearer drops cached data.
type cacheClearer interface {
	ClearResults() error
	ClearAll() error
}

func (c *CacheClearCmd) run(w io.Writer, cc cacheClearer) error {
	if c.Results {
		if err := cc.ClearResults(); err != nil {
			return fmt.Errorf("cache clear: %w", err)
		}
		_, _ = fmt.Fprintln(w, "Cleared cached results")
		return nil
	}
	if err := cc.ClearAll(); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	_, _ = fmt.Fprintln(w, "Cleared cache")
	return nil
}

// --- Changelog command ---

// ChangelogCmd prints the release notes.
type ChangelogCmd struct{}

// Run executes the changelog command.
func (c *ChangelogCmd) Run() error {
	return c.run(os.Stdout, resources())
}

func (c *ChangelogCmd) run(w io.Writer, fsys fs.FS) error {
	entries, err := changelog.Load(fsys)
	if err != nil {
		return fmt.Errorf("changelog: %w", err)
	}
	changelog.Render(w, entries)
	return nil
}

// --- Exit codes ---

const (
	exitSuccess = 0
	exitRemote  = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		return exitRemote
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return exitRemote
	}
	// Runtime failures of the service or a prefetch run map to the remote exit code.
	if errors.Is(err, api.ErrBusy) || errors.Is(err, weapon.ErrNoResult) ||
		errors.Is(err, prefetch.ErrCircuitBroken) || errors.Is(err, prefetch.ErrInterrupted) {
		return exitRemote
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("wopt"),
		kong.Description("Weapon DPS optimizer client."),
		kong.UsageOnError(),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
