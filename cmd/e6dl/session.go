package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/biscuitvixen/e6-dl/internal/downloader"
	"github.com/biscuitvixen/e6-dl/pkg/auth"
	"github.com/biscuitvixen/e6-dl/pkg/config"
	"github.com/biscuitvixen/e6-dl/pkg/e621"
	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
	"github.com/biscuitvixen/e6-dl/pkg/pooldb"
	"github.com/biscuitvixen/e6-dl/pkg/poolsync"
	"github.com/biscuitvixen/e6-dl/pkg/ratelimit"
	"github.com/biscuitvixen/e6-dl/pkg/retry"
)

// session holds the components of one invocation. The database side is
// always available; the API side is set up by connect.
type session struct {
	cfg       *config.Config
	log       logger.Logger
	logCloser io.Closer

	store   *pooldb.Store
	tracker *pooldb.Tracker

	client     *e621.Client
	downloader *downloader.Downloader
	syncer     *poolsync.Syncer

	// dbReset is set when the database was unreadable and started empty
	dbReset error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile, flagOverrides())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSession sets up logging and loads the pool database. Log lines go to
// stderr unless logOutput is given.
func newSession(cfg *config.Config, logOutput io.Writer) (*session, error) {
	var (
		log    logger.Logger
		closer io.Closer
		err    error
	)
	if logOutput != nil {
		log, closer, err = logger.NewWithOutput(&cfg.Logging, logOutput)
	} else {
		log, closer, err = logger.New(&cfg.Logging)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	log = log.WithField("run_id", uuid.NewString())
	log.WithFields(map[string]interface{}{
		"version":  version,
		"root":     cfg.Download.RootDirectory,
		"database": cfg.Database.Path,
	}).Debug("e6dl starting")

	s := &session{cfg: cfg, log: log, logCloser: closer}

	s.store = pooldb.NewStore(cfg.Database.Path, log)
	db, err := s.store.Load()
	if err != nil {
		if !errs.IsCorruptDatabase(err) {
			closer.Close()
			return nil, err
		}
		s.dbReset = err
	}
	s.tracker = pooldb.NewTracker(s.store, db)
	return s, nil
}

// connect creates the API client, the downloader and the syncer
func (s *session) connect() error {
	cfg := s.cfg

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	retryCfg := &retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     retry.NewBackoff(cfg.Retry),
		RetryIf:     retry.DefaultRetryIf,
	}

	s.client = e621.NewClient(cfg.API, limiter, retryCfg, s.log)
	s.client.SetMediaTimeout(cfg.Download.DownloadTimeout)
	if err := s.applyStoredCredentials(); err != nil {
		return err
	}

	s.downloader = downloader.New(s.client, s.tracker, downloader.Options{
		Root:        cfg.Download.RootDirectory,
		SiteURL:     s.client.BaseURL(),
		Concurrency: cfg.Download.ConcurrentDownloads,
	}, s.log)

	s.syncer = poolsync.New(s.client, s.downloader, s.tracker, poolsync.Options{
		Root:             cfg.Download.RootDirectory,
		CheckConcurrency: cfg.Download.CheckConcurrency,
	}, s.log)
	return nil
}

// applyStoredCredentials falls back to the credential manager when the
// configuration carries no API key. A missing account is only an error
// when one was asked for by name.
func (s *session) applyStoredCredentials() error {
	if s.cfg.API.HasCredentials() && accountName == "" {
		s.log.WithField("account", s.cfg.API.Username).Debug("Using credentials from configuration")
		return nil
	}

	manager, err := auth.NewManager(config.ConfigDir())
	if err != nil {
		if accountName != "" {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		s.log.WithError(err).Debug("Credential store unavailable, continuing anonymously")
		return nil
	}

	account, err := manager.Resolve(accountName)
	if err != nil {
		if accountName != "" {
			return fmt.Errorf("account %q: %w", accountName, err)
		}
		s.log.Debug("No stored credentials, continuing anonymously")
		return nil
	}

	s.client.SetCredentials(account.Username, account.APIKey)
	s.log.WithField("account", account.Username).Info("Using stored e621 credentials")
	return nil
}

// Close releases the log file
func (s *session) Close() error {
	return s.logCloser.Close()
}
