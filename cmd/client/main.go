package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/dmitrijs2005/spendsmart/internal/buildinfo"
	"github.com/dmitrijs2005/spendsmart/internal/client/cli"
	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/config"
	"github.com/dmitrijs2005/spendsmart/internal/client/identity"
	"github.com/dmitrijs2005/spendsmart/internal/client/services"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
	"github.com/dmitrijs2005/spendsmart/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: logging.Format(cfg.LogFormat)})
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rest, err := client.NewRESTClient(cfg.ServerURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(logger),
		client.WithTokenSource(func() string {
			if s := store.Current(); s != nil {
				return s.AuthToken
			}
			return ""
		}),
	)
	if err != nil {
		return err
	}

	// The App needs the controller and the controller's hook needs the App.
	// Transitions reported before the App exists (restore) are dropped.
	var app atomic.Pointer[cli.App]
	ctl, err := identity.New(ctx, store, rest,
		identity.WithSessionTTL(cfg.SessionTTL),
		identity.WithLogger(logger),
		identity.WithTransitionHook(func(tr identity.Transition) {
			if a := app.Load(); a != nil {
				a.OnTransition(tr)
			}
		}),
	)
	if err != nil {
		return err
	}
	defer ctl.Close()

	a := cli.NewApp(ctl,
		services.NewTransactionService(rest, store),
		services.NewAdminService(rest, store),
		cli.WithLogger(logger),
	)
	app.Store(a)
	a.Run(ctx)
	return nil
}

// openStore returns the session store. ":memory:" keeps the session for the
// lifetime of the process only.
func openStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (session.Store, func(), error) {
	if cfg.DatabasePath == ":memory:" {
		return session.NewMemoryStore(nil), func() {}, nil
	}

	db, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = db.Close() }

	opts := []session.Option{session.WithLogger(logger)}
	if cfg.SessionSecret != "" {
		sealer, err := session.NewPassphraseSealer(ctx, db, cfg.SessionSecret)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		opts = append(opts, session.WithSealer(sealer))
	}
	return session.NewPersistentStore(db, opts...), closeDB, nil
}
