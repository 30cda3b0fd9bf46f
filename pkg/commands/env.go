package commands

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/app"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/config"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/identity"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/logging"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/metrics"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/notify"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/reconcile"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/store"
)

// env is what every command needs to talk to the local backend.
type env struct {
	cfg      *config.Config
	log      *slog.Logger
	backend  *app.Service
	notifier *notify.Async
	metrics  *metrics.Metrics
	identity identity.Static

	logCloser io.Closer
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cmd.SilenceUsage = true
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, closer := logging.Init(cfg.LogLevel, cfg.LogSink)

	p, err := store.Load(cfg)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	m := metrics.New()
	n := notify.Multi{notify.Log{Log: log}, m}
	if cfg.NotifyBell {
		n = append(n, &notify.Bell{W: cmd.ErrOrStderr()})
	}

	return &env{
		cfg:       cfg,
		log:       log,
		backend:   &app.Service{Persistence: p, Log: log},
		notifier:  notify.NewAsync(n, 0),
		metrics:   m,
		identity:  identity.Static{ID: cfg.UserID, Email: cfg.UserEmail},
		logCloser: closer,
	}, nil
}

func (e *env) options() reconcile.Options {
	return reconcile.Options{
		MatchContent: e.cfg.MatchContent,
		Skew:         e.cfg.MatchSkew,
	}
}

func (e *env) Close() error {
	_ = e.notifier.Close()
	return e.logCloser.Close()
}
