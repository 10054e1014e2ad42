//go:build integration

package userstore_test

import (
	"context"
	"testing"

	"github.com/marmos91/relayfs/pkg/userstore"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newPostgresStore(t *testing.T) *userstore.GORMStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("relayfs_test"),
		postgres.WithUsername("relayfs_test"),
		postgres.WithPassword("relayfs_test"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container.Host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container.MappedPort: %v", err)
	}

	store, err := userstore.NewGORMStore(&userstore.Config{
		Type: userstore.DatabaseTypePostgres,
		Postgres: userstore.PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "relayfs_test",
			User:     "relayfs_test",
			Password: "relayfs_test",
			SSLMode:  "disable",
		},
	})
	if err != nil {
		t.Fatalf("NewGORMStore: %v", err)
	}
	return store
}

func TestGORMStore_InsertGetByNameAndUpdateConfig(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	u := &userstore.User{
		Username:     "alice",
		PasswordHash: "hashed",
		Token:        "tok-1",
		UserType:     userstore.TypeMember,
	}
	if err := store.Insert(ctx, u); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.GetByName(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.UserType != userstore.TypeMember || got.Token != "tok-1" {
		t.Fatalf("unexpected row: %+v", got)
	}

	if err := store.UpdateConfig(ctx, "alice", []byte(`{"theme":"dark"}`)); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if err := store.TouchLastLogin(ctx, "alice"); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}

	refreshed, err := store.GetByName(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByName after update: %v", err)
	}
	if string(refreshed.Config) != `{"theme":"dark"}` {
		t.Fatalf("expected config to persist, got %q", refreshed.Config)
	}
	if refreshed.LastLoginAt.IsZero() {
		t.Fatal("expected LastLoginAt to be set")
	}
}

func TestGORMStore_InsertRejectsDuplicateUsername(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	first := &userstore.User{Username: "bob", PasswordHash: "h", Token: "t1"}
	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	second := &userstore.User{Username: "bob", PasswordHash: "h2", Token: "t2"}
	if err := store.Insert(ctx, second); err != userstore.ErrDuplicateUser {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
}
