package plugin

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/humbleplugin/pkg/errors"
	"github.com/matzehuels/humbleplugin/pkg/rpc"
	"github.com/matzehuels/humbleplugin/pkg/session"
)

type gameParams struct {
	GameID string `json:"game_id"`
}

// Register installs the launcher methods on peer and uses it for
// notifications. onShutdown runs after the shutdown request is handled.
func (p *Plugin) Register(peer *rpc.Peer, onShutdown func()) {
	p.SetNotifier(peer)

	peer.Handle("initialize_cache", func(ctx context.Context, params json.RawMessage) (any, error) {
		in, err := rpc.Decode[struct {
			Data map[string]string `json:"data"`
		}](params)
		if err != nil {
			return nil, err
		}
		p.InitializeCache(in.Data)
		return nil, nil
	})
	peer.Handle("init_authentication", func(ctx context.Context, params json.RawMessage) (any, error) {
		in, err := rpc.Decode[struct {
			StoredCredentials json.RawMessage `json:"stored_credentials"`
		}](params)
		if err != nil {
			return nil, err
		}
		return p.InitAuthentication(ctx, in.StoredCredentials)
	})
	peer.Handle("pass_login_credentials", func(ctx context.Context, params json.RawMessage) (any, error) {
		in, err := rpc.Decode[struct {
			Cookies []session.Cookie `json:"cookies"`
		}](params)
		if err != nil {
			return nil, err
		}
		return p.PassLoginCredentials(ctx, in.Cookies)
	})
	peer.Handle("import_owned_games", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return p.ImportOwnedGames(ctx)
	})
	peer.Handle("import_local_games", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return p.ImportLocalGames(ctx)
	})
	peer.Handle("import_subscriptions", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return p.ImportSubscriptions(ctx)
	})
	peer.Handle("get_subscription_games", func(ctx context.Context, params json.RawMessage) (any, error) {
		in, err := rpc.Decode[struct {
			SubscriptionName string `json:"subscription_name"`
		}](params)
		if err != nil {
			return nil, err
		}
		return p.GetSubscriptionGames(ctx, in.SubscriptionName)
	})
	peer.Handle("install_game", gameHandler(p.InstallGame))
	peer.Handle("launch_game", gameHandler(p.LaunchGame))
	peer.Handle("uninstall_game", gameHandler(p.UninstallGame))
	peer.Handle("get_os_compatibility", func(ctx context.Context, params json.RawMessage) (any, error) {
		id, err := decodeGameID(params)
		if err != nil {
			return nil, err
		}
		return p.GetOSCompatibility(id)
	})
	peer.Handle("get_game_library_settings", func(ctx context.Context, params json.RawMessage) (any, error) {
		id, err := decodeGameID(params)
		if err != nil {
			return nil, err
		}
		return p.GetGameLibrarySettings(id)
	})
	peer.Handle("shutdown", func(ctx context.Context, _ json.RawMessage) (any, error) {
		err := p.Shutdown()
		if onShutdown != nil {
			onShutdown()
		}
		return nil, err
	})
}

func gameHandler(fn func(context.Context, string) error) rpc.HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		id, err := decodeGameID(params)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, id)
	}
}

// decodeGameID reads {game_id} and rejects ids that could not name a game.
func decodeGameID(params json.RawMessage) (string, error) {
	in, err := rpc.Decode[gameParams](params)
	if err != nil {
		return "", err
	}
	if err := errors.ValidateGameID(in.GameID); err != nil {
		return "", err
	}
	return in.GameID, nil
}
