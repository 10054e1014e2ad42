package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/relayfs/internal/logger"
	"github.com/marmos91/relayfs/pkg/archive"
	"github.com/marmos91/relayfs/pkg/fanout"
	"github.com/marmos91/relayfs/pkg/registry"
	"github.com/marmos91/relayfs/pkg/upload"
	"github.com/marmos91/relayfs/pkg/userstore"
)

// InitializeUserStore opens the configured user database.
func InitializeUserStore(cfg *Config) (userstore.UserStore, error) {
	logger.Debug("initializing user store", "type", cfg.Database.Type)

	store, err := userstore.NewGORMStore(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize user store: %w", err)
	}

	return store, nil
}

// InitializeRegistry creates an empty session registry. Sessions register
// themselves as WebSocket connections are established; there is nothing to
// seed from configuration.
func InitializeRegistry() *registry.Registry {
	return registry.New()
}

// InitializeUploadCoordinator builds the upload engine's coordinator and
// its persistent download-code store from cfg.Storage, wired to deliver
// slice-progress and completion notifications through reg.
func InitializeUploadCoordinator(cfg *Config, reg *registry.Registry) (*upload.Coordinator, error) {
	logger.Debug("initializing upload coordinator",
		"root", cfg.Storage.Root, "workers", cfg.Storage.Workers)

	codes, err := upload.NewCodeStore(cfg.Storage.CodeStorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open download-code store: %w", err)
	}

	coord := upload.NewCoordinator(cfg.Storage.Workers, cfg.Storage.Root, fanout.NewNotifier(reg), codes)
	return coord, nil
}

// EnsureAdminUser creates the admin account described by cfg.Admin if it
// does not already exist. If cfg.Admin.PasswordHash was set in the config
// file, that hash is used directly; otherwise a random password is
// generated and returned so the caller can print it once. Returns an empty
// generatedPassword if the admin user already existed or a hash was
// supplied.
func EnsureAdminUser(ctx context.Context, cfg *Config, store userstore.UserStore) (generatedPassword string, err error) {
	username := cfg.Admin.Username
	if username == "" {
		username = "admin"
	}

	_, err = store.GetByName(ctx, username)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, userstore.ErrUserNotFound) {
		return "", err
	}

	passwordHash := cfg.Admin.PasswordHash
	if passwordHash == "" {
		generatedPassword, err = generateRandomSecret()
		if err != nil {
			return "", fmt.Errorf("failed to generate admin password: %w", err)
		}
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(generatedPassword), bcrypt.DefaultCost)
		if hashErr != nil {
			return "", fmt.Errorf("failed to hash admin password: %w", hashErr)
		}
		passwordHash = string(hash)
	}

	token, err := generateRandomSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate admin bearer token: %w", err)
	}

	admin := &userstore.User{
		Username:     username,
		PasswordHash: passwordHash,
		Token:        token,
		UserType:     userstore.TypeMaster,
	}
	if err := store.Insert(ctx, admin); err != nil {
		return "", fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", "username", username)
	return generatedPassword, nil
}

func generateRandomSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// InitializeArchive builds the optional S3 archival tier. Returns nil,
// nil if archiving is disabled.
func InitializeArchive(ctx context.Context, cfg *Config) (*archive.Store, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}

	logger.Debug("initializing S3 archive tier", "bucket", cfg.Archive.Bucket)

	store, err := archive.NewFromConfig(ctx, cfg.ArchiveStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive store: %w", err)
	}

	return store, nil
}
