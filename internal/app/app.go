package app

import (
	"context"
	"sync"

	"admin-realtime-service/internal/bridge"
	"admin-realtime-service/internal/config"
	"admin-realtime-service/internal/domain/notification"
	"admin-realtime-service/internal/kvstore"
	"admin-realtime-service/internal/livechannel"
	"admin-realtime-service/internal/notify"
	"admin-realtime-service/internal/pkg/xerrors"
	"admin-realtime-service/internal/querycache"
	"admin-realtime-service/internal/restclient"
	"admin-realtime-service/internal/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App is the composition root of the bridge agent. It owns the stores, the
// live channel manager and the event bridge, and coordinates session-state
// transitions into connect/disconnect effects. The wiring between session and
// channel is explicit here rather than hidden in cross-store subscriptions.
type App struct {
	cfg    config.AppConfig
	logger *zap.Logger

	Notifications *notify.Store
	Session       *session.Store
	Channel       *livechannel.Manager
	Bridge        *bridge.Bridge

	redisClient *redis.Client

	mu    sync.Mutex
	bound bool
}

// New builds the full object graph. Redis backs token persistence and the
// query cache when reachable; without it the agent degrades to in-memory
// equivalents and logs the downgrade.
func New(cfg config.AppConfig, logger *zap.Logger) *App {
	a := &App{cfg: cfg, logger: logger}

	a.Notifications = notify.NewStore(logger.Named("notify"))

	var storage kvstore.Store
	var cache querycache.Cache

	redisClient, err := kvstore.NewRedisClient(kvstore.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		logger.Warn("redis unavailable, using in-memory storage and cache", zap.Error(err))
		storage = kvstore.NewMemoryStore()
		cache = querycache.NewMemoryCache()
	} else {
		a.redisClient = redisClient
		storage = kvstore.NewRedisStore(redisClient)
		cache = querycache.NewRedisCache(redisClient, logger.Named("querycache"))
	}

	api := restclient.New(cfg.APIBaseURL, logger.Named("restclient"))
	a.Session = session.NewStore(api, storage, logger.Named("session"))

	a.Channel = livechannel.NewManager(livechannel.Config{
		URL:              cfg.SocketURL,
		DialAttempts:     cfg.ReconnectAttempts,
		DialDelay:        cfg.ReconnectDelay,
		ResubscribeDelay: cfg.ResubscribeDelay,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, a.Session, logger.Named("livechannel"))

	a.Channel.SetHooks(livechannel.Hooks{
		OnConnect: func() {
			a.Notifications.Add(notification.Input{
				Type:    notification.TypeSuccess,
				Title:   "Connected",
				Message: "Real-time updates enabled.",
			})
		},
		OnDisconnect: func() {
			a.Notifications.Add(notification.Input{
				Type:    notification.TypeWarning,
				Title:   "Disconnected",
				Message: "Real-time updates lost. Reconnecting...",
			})
		},
		OnError: func(err error) {
			a.Notifications.Add(notification.Input{
				Type:    notification.TypeError,
				Title:   "Connection Error",
				Message: xerrors.MessageOrDefault(err, "Could not connect to real-time server."),
			})
		},
	})

	a.Bridge = bridge.New(a.Channel, a.Notifications, cache, logger.Named("bridge"))

	a.Session.OnChange(a.onSessionChange)

	return a
}

// Start rehydrates the session from durable storage. A restored session
// triggers the connect effect through the session listener.
func (a *App) Start(ctx context.Context) {
	if a.Session.CheckAuth(ctx) {
		a.logger.Info("starting with restored session")
	} else {
		a.logger.Info("starting anonymous, waiting for login")
	}
}

// Shutdown tears down the live channel and closes shared resources.
func (a *App) Shutdown(ctx context.Context) {
	a.Channel.Disconnect()
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	a.logger.Info("agent stopped")
}

// onSessionChange drives the live channel from session transitions: an
// authenticated session must be connecting or connected, an anonymous one
// must hold no connection and no pending retry.
func (a *App) onSessionChange(state session.State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if state.IsAuthenticated && state.AccessToken != "" {
		if !a.bound {
			a.Bridge.BindAll()
			a.bound = true
		}
		a.Channel.Connect(context.Background())
		return
	}

	if a.bound {
		a.Bridge.UnbindAll()
		a.bound = false
	}
	a.Channel.Disconnect()
}
