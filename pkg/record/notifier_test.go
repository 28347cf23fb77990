// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package record

import (
	"context"
	"testing"
	"time"
)

func TestRedisNotifier_WatchReceivesNotify(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	notifier := NewRedisNotifier(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := notifier.Watch(ctx, "test-user-watch")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := notifier.Notify(ctx, "other-user"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := notifier.Notify(ctx, "test-user-watch"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	cancel()
	select {
	case _, ok := <-changes:
		if ok {
			// A coalesced signal may still be buffered; the channel must close afterwards.
			if _, ok := <-changes; ok {
				t.Error("expected channel to close after cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch to stop")
	}
}

func TestRedisNotifier_EmptyUserID(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	notifier := NewRedisNotifier(client)
	if _, err := notifier.Watch(context.Background(), ""); err == nil {
		t.Error("expected error for empty user id")
	}
	if err := notifier.Notify(context.Background(), ""); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestConnect_FailsFastWithoutServer(t *testing.T) {
	_, mr := setupTestRedis(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), ConnectOptions{Addr: addr, MaxRetries: 1, RetryDelayMs: 1})
	if err == nil {
		t.Fatal("expected connection error")
	}
}

func TestConnect(t *testing.T) {
	_, mr := setupTestRedis(t)
	defer mr.Close()

	client, err := Connect(context.Background(), ConnectOptions{Addr: mr.Addr(), MaxRetries: 1})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()
}
