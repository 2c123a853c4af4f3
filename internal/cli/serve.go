package cli

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/humbleplugin/pkg/buildinfo"
	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/localgames"
	"github.com/matzehuels/humbleplugin/pkg/plugin"
	"github.com/matzehuels/humbleplugin/pkg/rpc"
)

const dialTimeout = 10 * time.Second

// serveCommand creates the command the launcher runs.
func (c *CLI) serveCommand() *cobra.Command {
	var port int
	var tick time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the launcher protocol",
		Long: `Serve the launcher's JSON-RPC protocol.

With --port the plugin connects to the launcher on 127.0.0.1:<port>.
Without it requests are read from stdin and responses written to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			rw, err := connect(ctx, port)
			if err != nil {
				return err
			}
			defer rw.Close()

			return c.serve(ctx, cancel, rw, tick)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "launcher port on 127.0.0.1 (0: use stdin/stdout)")
	cmd.Flags().DurationVar(&tick, "tick", plugin.DefaultTickInterval, "interval between settings and install checks")
	return cmd
}

type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }

func connect(ctx context.Context, port int) (io.ReadWriteCloser, error) {
	if port == 0 {
		return stdio{os.Stdin, os.Stdout}, nil
	}
	if port < 0 || port > 65535 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid port %d", port)
	}
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBackendUnavailable, err, "connect to launcher")
	}
	return conn, nil
}

func (c *CLI) serve(ctx context.Context, stop context.CancelFunc, rw io.ReadWriter, tick time.Duration) error {
	installDebugHooks(c.Logger.WithPrefix("trace"))

	st, err := c.openSettings()
	if err != nil {
		return err
	}
	p := plugin.New(plugin.Config{
		API:          c.newAPI(),
		Settings:     st,
		FS:           c.fs,
		Hives:        localgames.SystemHives(),
		Logger:       c.Logger,
		TickInterval: tick,
	})

	peer := rpc.NewPeer(rw, rw, c.Logger.WithPrefix("rpc"))
	p.Register(peer, stop)
	p.Start(ctx)
	defer p.Shutdown()

	c.Logger.Info("serving launcher", "version", buildinfo.PluginVersion(), "settings", st.Path())
	if err := peer.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
