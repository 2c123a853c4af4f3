// Package cli implements the humbleplugin command-line interface.
//
// The serve command is what the launcher runs. The other commands run the
// same resolvers outside the launcher to inspect a library, the settings
// file and the caches.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/matzehuels/humbleplugin/pkg/cache"
	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/humble"
	"github.com/matzehuels/humbleplugin/pkg/localgames"
	"github.com/matzehuels/humbleplugin/pkg/plugin"
	"github.com/matzehuels/humbleplugin/pkg/session"
	"github.com/matzehuels/humbleplugin/pkg/settings"
)

const (
	// appName is the application name used for directories and display.
	appName = "humbleplugin"

	// sessionEnv overrides the stored session cookie.
	sessionEnv = "HUMBLE_SESSION"

	// requestTimeout bounds diagnostic commands.
	requestTimeout = 5 * time.Minute
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	fs           afero.Fs
	settingsPath string
	noCache      bool
	cookie       string
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		fs:     afero.NewOsFs(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Wiring
// =============================================================================

// newAPI creates the Humble API with the Choice page cache.
func (c *CLI) newAPI() *humble.API {
	client := humble.NewClient(humble.WithLogger(c.Logger.WithPrefix("http")))
	return humble.NewAPI(client, newCache(c.fs, c.noCache), c.Logger.WithPrefix("api"))
}

func newCache(fs afero.Fs, noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(fs, dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return cache.Scoped(fc, "pages")
}

// openSettings loads the settings file, creating it when missing.
func (c *CLI) openSettings() (*settings.Settings, error) {
	path := c.settingsPath
	if path == "" {
		var err error
		if path, err = settings.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return settings.New(c.fs, path, c.Logger.WithPrefix("settings")), nil
}

func (c *CLI) sessionStore() (*session.FileStore, error) {
	path, err := session.DefaultPath()
	if err != nil {
		return nil, err
	}
	return session.NewFileStore(c.fs, path), nil
}

// credentials returns the session to use: --cookie, then $HUMBLE_SESSION,
// then the stored login. The store is returned only for a stored login.
func (c *CLI) credentials() (*session.Credentials, *session.FileStore, error) {
	for _, v := range []string{c.cookie, os.Getenv(sessionEnv)} {
		if v != "" {
			return session.New(map[string]string{humble.SessionCookie: v}), nil, nil
		}
	}
	store, err := c.sessionStore()
	if err != nil {
		return nil, nil, err
	}
	creds, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	if creds == nil {
		return nil, nil, errors.AuthRequired("not logged in (run '%s login' or set %s)", appName, sessionEnv)
	}
	return creds, store, nil
}

// notifier handles plugin notifications outside the launcher. Refreshed
// cookies of a stored login are written back and the library cache is
// kept in the cache directory.
type notifier struct {
	fs          afero.Fs
	store       *session.FileStore
	libraryPath string
	logger      *log.Logger
}

func (n *notifier) Notify(method string, params any) error {
	switch method {
	case "store_credentials":
		if creds, ok := params.(*session.Credentials); ok && n.store != nil {
			return n.store.Save(creds)
		}
	case "push_cache":
		m, ok := params.(map[string]any)
		if !ok || n.libraryPath == "" {
			return nil
		}
		blobs, _ := m["persistent_cache"].(map[string]string)
		if data, ok := blobs["library"]; ok {
			if err := n.fs.MkdirAll(filepath.Dir(n.libraryPath), 0o755); err != nil {
				return err
			}
			return afero.WriteFile(n.fs, n.libraryPath, []byte(data), 0o600)
		}
	}
	n.logger.Debug("notification", "method", method)
	return nil
}

// libraryCachePath is where diagnostic commands keep the library cache, or
// "" when caching is off.
func (c *CLI) libraryCachePath() string {
	if c.noCache {
		return ""
	}
	dir, err := cacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "library.json")
}

// loginPlugin creates a plugin for a diagnostic command and authenticates
// it with the CLI credentials.
func (c *CLI) loginPlugin(ctx context.Context) (*plugin.Plugin, error) {
	creds, store, err := c.credentials()
	if err != nil {
		return nil, err
	}
	st, err := c.openSettings()
	if err != nil {
		return nil, err
	}
	p := plugin.New(plugin.Config{
		API:      c.newAPI(),
		Settings: st,
		FS:       c.fs,
		Hives:    localgames.SystemHives(),
		Logger:   c.Logger,
	})
	libraryPath := c.libraryCachePath()
	p.SetNotifier(&notifier{fs: c.fs, store: store, libraryPath: libraryPath, logger: c.Logger})
	if libraryPath != "" {
		if data, err := afero.ReadFile(c.fs, libraryPath); err == nil {
			p.InitializeCache(map[string]string{"library": string(data)})
		}
	}
	raw, err := creds.Marshal()
	if err != nil {
		return nil, err
	}
	res, err := p.InitAuthentication(ctx, raw)
	if err != nil {
		return nil, err
	}
	if _, ok := res.(*plugin.AuthResult); !ok {
		return nil, errors.AuthRequired("stored session has no %s cookie", humble.SessionCookie)
	}
	return p, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/humbleplugin/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home dir: %w", err)
	}
	return filepath.Join(home, ".cache", appName), nil
}
