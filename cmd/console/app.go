package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/cache"
	"github.com/meowecho-tech/vote/internal/config"
	"github.com/meowecho-tech/vote/internal/guard"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/receipts"
	"github.com/meowecho-tech/vote/internal/service"
	"github.com/meowecho-tech/vote/internal/session"
	"github.com/meowecho-tech/vote/internal/storage"
)

type app struct {
	cfg  *config.AppConfig
	log  zerolog.Logger
	out  io.Writer
	errw io.Writer

	sess      *session.Session
	auth      *service.AuthService
	elections *service.ElectionService
	contests  *service.ContestService
	ballots   *service.BallotService

	redis   *redis.Client
	objects *storage.ObjectStore
	ledger  *receipts.Ledger
}

func newApp(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger, out, errw io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: logger, out: out, errw: errw}

	var store session.Store
	switch strings.ToLower(cfg.Session.Store) {
	case "memory":
		store = session.NewMemoryStore()
	case "", "file":
		store = session.NewFileStore(cfg.Session.Path)
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		store = session.NewRedisStore(client, cfg.Session.RedisKey, cfg.Session.TTL)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}

	a.sess = session.New(store, logger)
	if err := a.sess.Restore(ctx); err != nil {
		a.close()
		return nil, err
	}

	api := session.NewClient(a.sess, session.Options{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout,
		RefreshTimeout: cfg.API.RefreshTimeout,
		Logger:         logger,
	})

	var archive service.ImportArchive
	if cfg.Storage.Enabled {
		objects, err := a.objectStore(ctx)
		if err != nil {
			a.close()
			return nil, err
		}
		archive = service.NewObjectArchive(objects, logger)
	}

	a.auth = service.NewAuthService(api, a.sess, logger)
	a.elections = service.NewElectionService(api, logger)
	a.contests = service.NewContestService(api, archive, logger)
	a.ballots = service.NewBallotService(api)
	return a, nil
}

func (a *app) close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close receipt ledger failed")
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := cache.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return client, nil
}

func (a *app) objectStore(ctx context.Context) (*storage.ObjectStore, error) {
	if a.objects != nil {
		return a.objects, nil
	}
	if !a.cfg.Storage.Enabled {
		return nil, fmt.Errorf("%w: object storage is disabled (storage.enabled)", errUsage)
	}
	objects, err := storage.NewObjectStore(a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	a.objects = objects
	return objects, nil
}

func (a *app) receiptLedger() (*receipts.Ledger, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	ledger, err := receipts.Open(a.cfg.Receipts.Path)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger
	return ledger, nil
}

// authorize is the advisory local check run before a call; the API decides.
func (a *app) authorize(action guard.Action, election models.Election) error {
	role, _ := a.sess.Role()
	if !a.sess.Authenticated() {
		role = ""
	}
	if err := guard.Authorize(role, action, election.Status); err != nil {
		if election.ID != "" {
			return fmt.Errorf("election %s: %w", election.ID, err)
		}
		return err
	}
	return nil
}

// enter applies the surface check for a console path and tells the caller
// where they would be sent instead.
func (a *app) enter(path string) error {
	decision := guard.CanAccess(path, a.sess.CurrentAccess())
	if decision.Allowed {
		return nil
	}
	fmt.Fprintf(a.errw, "redirect: %s\n", decision.Redirect)
	if strings.HasPrefix(decision.Redirect, guard.LoginPath) {
		return guard.ErrUnauthenticated
	}
	return guard.ErrForbidden
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errw)
	return fs
}

// parseFlags reports bad flags as usage errors. The flag package has
// already printed the detail to a.errw.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

type flagValue struct {
	name  string
	value string
}

// required reports the first missing flag in the order given.
func required(values ...flagValue) error {
	for _, v := range values {
		if strings.TrimSpace(v.value) == "" {
			return fmt.Errorf("%w: -%s is required", errUsage, v.name)
		}
	}
	return nil
}

func action(args []string, allowed ...string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%w: expected one of %s", errUsage, strings.Join(allowed, "|"))
	}
	for _, name := range allowed {
		if args[0] == name {
			return name, args[1:], nil
		}
	}
	return "", nil, fmt.Errorf("%w: unknown action %q, expected one of %s", errUsage, args[0], strings.Join(allowed, "|"))
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
