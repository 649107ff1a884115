package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sereno-go/internal/api"
	"sereno-go/internal/config"
	"sereno-go/internal/database"
	"sereno-go/internal/encryption"
	"sereno-go/internal/field"
	"sereno-go/internal/fs"
	"sereno-go/internal/geocode"
	"sereno-go/internal/jurisdiction"
	"sereno-go/internal/location"
	"sereno-go/internal/session"
	"sereno-go/internal/staging"
	"sereno-go/internal/vault"
)

// SerenoApp is the application layer between the CLI and the field
// service. It constructs all dependencies from config and manages the
// store lifecycle on Close.
type SerenoApp struct {
	cfg       *config.Config
	store     field.LocalStore
	sessions  *session.Store
	encryptor field.Encryptor
	service   *field.Service
	logFile   *os.File
}

// NewSerenoApp creates a fully wired SerenoApp from the given config.
// operation identifies the CLI command being run (e.g. "Login", "Submit").
// The caller must call Close when done.
func NewSerenoApp(ctx context.Context, cfg *config.Config, operation string) (*SerenoApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, operation)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	clock := field.RealClock{}
	bus := session.NewBus()
	sessions := session.NewStore(filepath.Join(cfg.BaseDir, "session.age"),
		enc, bus, field.UUIDGenerator{}, logger, clock)

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating local store: %w", err)
	}

	sa, err := staging.NewStagingFromConfig(cfg.Staging, clock)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating staging queue: %w", err)
	}

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating evidence vault: %w", err)
	}

	var gwOpts []api.Option
	if cfg.API.TimeoutSeconds > 0 && cfg.API.IncidenceTimeout > 0 {
		gwOpts = append(gwOpts, api.WithTimeouts(
			time.Duration(cfg.API.TimeoutSeconds)*time.Second,
			time.Duration(cfg.API.IncidenceTimeout)*time.Second))
	}
	gateway := api.NewGateway(cfg.API.MainURL, cfg.API.IncidenceURL, sessions, logger, gwOpts...)

	var geoOpts []geocode.Option
	if cfg.Geocoder.BaseURL != "" {
		geoOpts = append(geoOpts, geocode.WithBaseURL(cfg.Geocoder.BaseURL))
	}
	if cfg.Geocoder.UserAgent != "" {
		geoOpts = append(geoOpts, geocode.WithUserAgent(cfg.Geocoder.UserAgent))
	}
	if cfg.Geocoder.TimeoutSeconds > 0 {
		geoOpts = append(geoOpts, geocode.WithTimeout(time.Duration(cfg.Geocoder.TimeoutSeconds)*time.Second))
	}
	geocoder := geocode.NewClient(database.NewGeoCache(store, clock, logger), logger, geoOpts...)

	provider, err := location.NewProviderFromConfig(cfg.Location, clock, logger)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating location provider: %w", err)
	}
	acquirer := field.NewAcquirer(provider, geocoder, logger)

	jurisdictions := jurisdiction.NewIndex(cfg.Jurisdictions.Source, logger)

	fsmgr := fs.NewOSFilesystemManager()
	svc := field.NewService(sessions, gateway, store, sa, v, jurisdictions, acquirer,
		fsmgr, logger, clock, field.UUIDGenerator{})

	return &SerenoApp{
		cfg:       cfg,
		store:     store,
		sessions:  sessions,
		encryptor: enc,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// Service exposes the field service for command handlers.
func (a *SerenoApp) Service() *field.Service {
	return a.service
}

// Sessions exposes the session store for commands that inspect session
// state without a passphrase.
func (a *SerenoApp) Sessions() *session.Store {
	return a.sessions
}

// EncryptionConfigured reports whether the local key pair exists.
func (a *SerenoApp) EncryptionConfigured() bool {
	return a.encryptor.IsConfigured()
}

// SetupEncryption generates the local key pair protecting the session
// blob. The passphrase guards the private key.
func (a *SerenoApp) SetupEncryption(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	return a.encryptor.Setup(passphrase)
}

// RestoreSession unlocks the private key with the passphrase and loads
// the persisted session, if any.
func (a *SerenoApp) RestoreSession(passphrase string) error {
	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking session keys: %w", err)
	}
	return a.sessions.Rehydrate(dc)
}

// Login authenticates against the platform, setting up the local key
// pair on first use.
func (a *SerenoApp) Login(ctx context.Context, email, password, passphrase string) (*field.User, error) {
	if !a.encryptor.IsConfigured() {
		if err := a.encryptor.Setup(passphrase); err != nil {
			return nil, fmt.Errorf("setting up encryption: %w", err)
		}
	} else if err := a.RestoreSession(passphrase); err != nil {
		return nil, err
	}
	return a.service.Login(ctx, email, password)
}

// Close releases all resources.
func (a *SerenoApp) Close() error {
	var firstErr error

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing local store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
