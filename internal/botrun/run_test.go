package botrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hik1komori/life-dorama-bot/internal/broadcast"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/pacing"
	"github.com/hik1komori/life-dorama-bot/internal/testsupport"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

func message(id, userID int64, text string) transport.Update {
	return transport.Update{ID: id, Message: &transport.Message{
		ID:   int(id),
		Chat: transport.Chat{ID: userID, Type: "private"},
		From: &transport.User{ID: userID, FirstName: "Ali"},
		Text: text,
	}}
}

func fakeClock() *pacing.FakeClock {
	return pacing.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestAssembleServesCatalogFromStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fake := testsupport.NewTransport()
	testsupport.SeedTitle(t, st, "YL2024", "Your Lie", 3)

	rt, err := Assemble(context.Background(), cfg, st, fake, nil, fakeClock(), logging.NewNop())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	rt.Bot.Handle(context.Background(), message(1, 42, "YL2024"))
	if err := rt.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := fake.VideoRefs(42); len(got) != 3 {
		t.Fatalf("expected 3 videos, got %v", got)
	}
	last, ok := fake.LastText(42)
	if !ok || len(last.Reply) == 0 {
		t.Fatalf("expected completion with the main keyboard, got %+v", last)
	}
}

func TestAssembleWiresRedisCacheAndBroadcastLock(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := testsupport.NewConfig(t, testsupport.WithRedis(server.Addr()))
	st := testsupport.MustOpenStore(t, cfg)
	fake := testsupport.NewTransport()
	testsupport.SeedTitle(t, st, "YL2024", "Your Lie", 1)
	testsupport.SeedUsers(t, st, 10, 11)

	rt, err := Assemble(context.Background(), cfg, st, fake, nil, fakeClock(), logging.NewNop())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	ctx := context.Background()

	rt.Bot.Process(ctx, message(1, 42, "YL2024"))
	if !server.Exists("doramabot:title:YL2024") {
		t.Fatal("expected delivery to read the title through the cache")
	}

	if err := server.Set("doramabot:lock:broadcast", "other-process"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	update := message(2, 1, "/broadcast")
	update.Message.ReplyTo = &transport.Message{ID: 77, Chat: transport.Chat{ID: 1}}
	rt.Bot.Process(ctx, update)

	if len(fake.Forwards) != 0 {
		t.Fatalf("expected no forwards while another process broadcasts, got %d", len(fake.Forwards))
	}
	last, _ := fake.LastText(1)
	if last.Body != broadcast.InProgressText {
		t.Fatalf("expected in-progress reply, got %q", last.Body)
	}
}

func TestAssembleFailsWhenRedisUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithRedis(addr))
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := Assemble(context.Background(), cfg, st, testsupport.NewTransport(), nil, fakeClock(), logging.NewNop()); err == nil {
		t.Fatal("expected an error for an unreachable redis")
	}
}

func TestAssembleRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := Assemble(context.Background(), cfg, nil, testsupport.NewTransport(), nil, nil, logging.NewNop()); err == nil {
		t.Fatal("expected an error without a store")
	}
}

func TestInstanceLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doramabot.lock")

	first, err := AcquireInstanceLock(path)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if _, err := AcquireInstanceLock(path); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	again, err := AcquireInstanceLock(path)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	_ = again.Unlock()
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"doramabot-a.log", "doramabot-b.log"} {
		target := filepath.Join(dir, name)
		if err := os.WriteFile(target, []byte(name), 0o644); err != nil {
			t.Fatalf("write log: %v", err)
		}
		if err := ensureCurrentLogPointer(dir, target); err != nil {
			t.Fatalf("ensureCurrentLogPointer failed: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "doramabot.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "doramabot-b.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}
