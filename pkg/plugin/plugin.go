// Package plugin is the launcher-facing facade. It owns the library cache,
// the owned, local and subscription game maps, and runs the periodic tick
// that reacts to settings, registry and filesystem changes.
//
// Resolvers are stateless with respect to the plugin: they receive a
// snapshot and return results, which the plugin installs under its lock.
package plugin

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/browser"
	"github.com/spf13/afero"

	"github.com/matzehuels/humbleplugin/pkg/library"
	"github.com/matzehuels/humbleplugin/pkg/localgames"
	"github.com/matzehuels/humbleplugin/pkg/model"
	"github.com/matzehuels/humbleplugin/pkg/settings"
	"github.com/matzehuels/humbleplugin/pkg/subscription"
)

// Defaults for Config.
const (
	DefaultTickInterval     = 5 * time.Second
	DefaultDoubleClickDelay = 400 * time.Millisecond
)

// API is the Humble API surface used by the plugin.
type API interface {
	library.API
	subscription.API
	Authenticate(ctx context.Context, sessionCookie string) (string, error)
	SetCookies(cookies map[string]string)
	Cookies() map[string]string
	SignURLSubproduct(ctx context.Context, downloadMachineName, filename string) (string, error)
	SignURLTrove(ctx context.Context, download model.DownloadStruct, productMachineName string) (string, error)
	Close() error
}

// Notifier sends notifications to the launcher.
type Notifier interface {
	Notify(method string, params any) error
}

// Process is a started child process.
type Process interface {
	Wait() error
}

// StartFunc starts exe with args in dir.
type StartFunc func(exe string, args []string, dir string) (Process, error)

// Config wires a Plugin. API and Settings are required.
type Config struct {
	API      API
	Settings *settings.Settings
	FS       afero.Fs
	Hives    []localgames.Hive
	Logger   *log.Logger

	// Open opens a URL or file with the OS handler.
	Open func(target string) error
	// Start runs local executables.
	Start StartFunc
	// HumbleApp returns the Humble App executable, or "" when absent.
	HumbleApp func() string

	TickInterval     time.Duration
	DoubleClickDelay time.Duration
}

// Plugin implements the launcher operations.
type Plugin struct {
	api       API
	settings  *settings.Settings
	fs        afero.Fs
	logger    *log.Logger
	open      func(string) error
	start     StartFunc
	humbleApp func() string

	library *library.Resolver
	subs    *subscription.Resolver
	finder  *localgames.AppFinder
	picker  *localgames.Picker
	clicks  *doubleClick
	tick    time.Duration

	notifierMu sync.RWMutex
	notifier   Notifier

	shutdown    sync.Once
	shutdownErr error

	mu          sync.Mutex
	userID      string
	cache       *library.Cache
	owned       []model.Game
	ownedByID   map[string]model.Game
	imported    bool
	local       map[string]*localGame
	choiceGames map[string]model.ChoiceGame
	stopTick    context.CancelFunc
}

type localGame struct {
	localgames.LocalGame
	state LocalGameState
}

// New creates a Plugin.
func New(cfg Config) *Plugin {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.Open == nil {
		cfg.Open = openWithBrowser
	}
	if cfg.Start == nil {
		cfg.Start = startProcess
	}
	if cfg.HumbleApp == nil {
		fs := cfg.FS
		cfg.HumbleApp = func() string { return localgames.HumbleAppPath(fs) }
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.DoubleClickDelay <= 0 {
		cfg.DoubleClickDelay = DefaultDoubleClickDelay
	}

	p := &Plugin{
		api:         cfg.API,
		settings:    cfg.Settings,
		fs:          cfg.FS,
		logger:      cfg.Logger,
		open:        cfg.Open,
		start:       cfg.Start,
		humbleApp:   cfg.HumbleApp,
		subs:        subscription.NewResolver(cfg.API, cfg.Logger.WithPrefix("subscription")),
		clicks:      newDoubleClick(cfg.DoubleClickDelay),
		tick:        cfg.TickInterval,
		cache:       &library.Cache{},
		ownedByID:   make(map[string]model.Game),
		local:       make(map[string]*localGame),
		choiceGames: make(map[string]model.ChoiceGame),
	}
	p.library = library.NewResolver(cfg.API, p.pushCache, cfg.Logger.WithPrefix("library"))
	p.picker = localgames.NewPicker(cfg.FS, cfg.Logger.WithPrefix("local"))
	p.finder = localgames.NewAppFinder(
		localgames.NewWatcher(cfg.Hives, cfg.Logger.WithPrefix("registry")),
		p.picker,
		cfg.Logger.WithPrefix("local"),
	)

	// The initial snapshot is not a change.
	cfg.Settings.LibraryChanged()
	cfg.Settings.InstalledChanged()
	return p
}

// SetNotifier sets the launcher connection used for notifications.
func (p *Plugin) SetNotifier(n Notifier) {
	p.notifierMu.Lock()
	defer p.notifierMu.Unlock()
	p.notifier = n
}

func (p *Plugin) notify(method string, params any) {
	p.notifierMu.RLock()
	n := p.notifier
	p.notifierMu.RUnlock()
	if n == nil {
		return
	}
	if err := n.Notify(method, params); err != nil {
		p.logger.Error("notification failed", "method", method, "err", err)
	}
}

// InitializeCache restores the persistent cache handed over by the
// launcher. An unreadable library cache is dropped.
func (p *Plugin) InitializeCache(data map[string]string) {
	raw, ok := data[cacheKeyLibrary]
	if !ok {
		return
	}
	c, err := library.UnmarshalCache([]byte(raw))
	if err != nil {
		p.logger.Warn("dropping unreadable library cache", "err", err)
	}
	p.mu.Lock()
	p.cache = c
	p.mu.Unlock()
}

const cacheKeyLibrary = "library"

func (p *Plugin) pushCache(c *library.Cache) {
	data, err := c.Marshal()
	if err != nil {
		p.logger.Error("serializing library cache failed", "err", err)
		return
	}
	p.notify("push_cache", map[string]any{
		"persistent_cache": map[string]string{cacheKeyLibrary: string(data)},
	})
}

func (p *Plugin) cacheSnapshot() *library.Cache {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache
}

// Start runs the tick loop until ctx is done or Shutdown is called.
func (p *Plugin) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.stopTick = cancel
	p.mu.Unlock()

	go func() {
		t := time.NewTicker(p.tick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				p.Tick(ctx)
			}
		}
	}()
}

// Shutdown stops the tick loop and closes the HTTP session. Later calls
// return the first result.
func (p *Plugin) Shutdown() error {
	p.shutdown.Do(func() {
		p.mu.Lock()
		stop := p.stopTick
		p.mu.Unlock()
		if stop != nil {
			stop()
		}
		p.clicks.stop()
		p.shutdownErr = p.api.Close()
	})
	return p.shutdownErr
}

func (p *Plugin) game(id string) (model.Game, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.ownedByID[id]; ok {
		return g, true
	}
	g, ok := p.choiceGames[id]
	return g, ok
}

func openWithBrowser(target string) error {
	if strings.Contains(target, "://") {
		return browser.OpenURL(target)
	}
	return browser.OpenFile(target)
}

func startProcess(exe string, args []string, dir string) (Process, error) {
	cmd := exec.Command(exe, args...)
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func init() {
	// stdout carries the launcher protocol.
	browser.Stdout = io.Discard
}
