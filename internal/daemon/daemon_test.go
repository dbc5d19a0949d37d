package daemon_test

import (
	"context"
	"testing"

	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/logging"
	"scribe/internal/notes"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
	"scribe/internal/testsupport"
	"scribe/internal/workflow"
)

func newManager(cfg *config.Config, store *queue.Store) *workflow.Manager {
	env := &pipeline.Env{
		Cfg:    cfg,
		Store:  store,
		Notes:  notes.NewStore(store.DB()),
		Logger: logging.NewNop(),
	}
	return workflow.NewManager(cfg, store, env, logging.NewNop())
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := newManager(cfg, store)

	if _, err := daemon.New(nil, store, logging.NewNop(), manager); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := daemon.New(cfg, nil, logging.NewNop(), manager); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := daemon.New(cfg, store, logging.NewNop(), nil); err == nil {
		t.Fatal("expected error for nil workflow manager")
	}
}

func TestStartEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first, err := daemon.New(cfg, store, logging.NewNop(), newManager(cfg, store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	secondStore := testsupport.MustOpenStore(t, cfg)
	second, err := daemon.New(cfg, secondStore, logging.NewNop(), newManager(cfg, secondStore))
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second daemon start to fail while lock held")
	}

	status := first.Status(context.Background())
	if !status.Running {
		t.Fatal("first daemon should report running")
	}
	if status.LockFilePath == "" {
		t.Fatal("expected lock file path in status")
	}
}

func TestStopReleasesLockForNextStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, logging.NewNop(), newManager(cfg, store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Stop()

	replacementStore := testsupport.MustOpenStore(t, cfg)
	replacement, err := daemon.New(cfg, replacementStore, logging.NewNop(), newManager(cfg, replacementStore))
	if err != nil {
		t.Fatalf("New replacement: %v", err)
	}
	if err := replacement.Start(context.Background()); err != nil {
		t.Fatalf("expected restart after stop to succeed: %v", err)
	}
	replacement.Stop()
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, logging.NewNop(), newManager(cfg, store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sent, detail, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("expected no notification without a configured topic")
	}
	if detail == "" {
		t.Fatal("expected explanatory detail")
	}
}
