package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/todopad/todopad/internal/config"
	"github.com/todopad/todopad/internal/logging"
	"github.com/todopad/todopad/internal/prefs"
	"github.com/todopad/todopad/internal/session"
	"github.com/todopad/todopad/internal/todoapi"
	"github.com/todopad/todopad/internal/todolist"
	"github.com/todopad/todopad/internal/tokenstore"
	"github.com/todopad/todopad/internal/ui"
)

// Options configure the todopad application. Zero values keep the config
// file (or its defaults).
type Options struct {
	ConfigPath   string
	PrefsPath    string // empty uses default ~/.config/todopad/prefs.toml
	APIURL       string
	IdleTimeout  time.Duration
	RefreshEvery time.Duration
	Debug        bool
}

// Run boots the todopad TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, opts)

	closer, err := logging.Setup(cfg.LogFile, opts.Debug)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer func() { _ = closer.Close() }()
	logger := log.StandardLogger()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.WithError(err).Warn("load preferences, using defaults")
	}

	tokens, err := tokenstore.Open(cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("open credentials: %w", err)
	}

	state := session.NewState(tokens, logger)
	client, err := todoapi.NewClient(cfg.APIURL, state, todoapi.Options{
		Timeout:       cfg.RequestTimeout,
		ExpiredStatus: cfg.ExpiredStatus,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}
	list := todolist.New(client, logger)

	keepers := newKeeperSlot(ctx, state, client, session.KeeperOptions{
		Timeout:      cfg.IdleTimeout,
		RenewTimeout: cfg.RequestTimeout,
		Logger:       logger,
	})
	defer keepers.close()

	logger.WithFields(log.Fields{
		"api":     cfg.APIURL,
		"idle":    cfg.IdleTimeout.String(),
		"refresh": cfg.RefreshInterval.String(),
		"session": state.Status().String(),
	}).WithFields(tokenFields(tokens.Info())).Info("todopad starting")

	if !state.Expired() {
		keepers.restart()
	}

	// Start background poller
	StartPoller(ctx, list, state, cfg.RefreshInterval, logger)

	// Populate the first page before the UI starts. A rejected token
	// surfaces as a session notice once the UI is up.
	if !state.Expired() {
		initCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		if err := list.Refresh(initCtx); err != nil && !errors.Is(err, todoapi.ErrSessionExpired) {
			logger.WithError(err).Warn("initial refresh failed")
		}
		cancel()
	}

	uiOpts := ui.Options{
		Context:   ctx,
		List:      list,
		Client:    client,
		Session:   state,
		Config:    &cfg,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		Logger:    logger,
		Touch:     keepers.touch,
		OnLogin:   keepers.restart,
	}
	err = ui.Run(uiOpts)
	logger.Info("todopad exiting")
	return err
}

// tokenFields describes the stored token for the log without its value.
func tokenFields(info *tokenstore.Info) log.Fields {
	if info == nil {
		return log.Fields{"token": "none"}
	}
	fields := log.Fields{"token": info.Source}
	if info.ExpiresAt != nil {
		fields["token_expires"] = info.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return fields
}

func applyOverrides(cfg *config.Config, opts Options) {
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}
	if opts.IdleTimeout > 0 {
		cfg.IdleTimeout = opts.IdleTimeout
	}
	if opts.RefreshEvery > 0 {
		cfg.RefreshInterval = opts.RefreshEvery
	}
}
