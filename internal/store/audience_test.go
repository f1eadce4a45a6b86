package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/testsupport"
)

func TestChannelsKeepRegistrationOrder(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, channel := range []store.Channel{
		{ID: -1003, Username: "@third"},
		{ID: -1001, Username: "first"},
		{ID: -1002, Title: "Secret", InviteLink: "https://t.me/+abc", IsPrivate: true},
	} {
		if _, err := st.AddChannel(ctx, channel); err != nil {
			t.Fatalf("AddChannel failed: %v", err)
		}
	}
	if _, err := st.AddChannel(ctx, store.Channel{ID: -1003, Username: "renamed"}); err != nil {
		t.Fatalf("AddChannel update failed: %v", err)
	}
	if err := st.SetChannelActive(ctx, -1001, false); err != nil {
		t.Fatalf("SetChannelActive failed: %v", err)
	}

	active, err := st.ListActiveChannels(ctx)
	if err != nil {
		t.Fatalf("ListActiveChannels failed: %v", err)
	}
	if len(active) != 2 || active[0].ID != -1003 || active[1].ID != -1002 {
		t.Fatalf("unexpected active channels: %#v", active)
	}
	if active[0].Username != "renamed" || active[0].JoinURL() != "https://t.me/renamed" {
		t.Fatalf("expected updated username, got %#v", active[0])
	}
	if !active[1].IsPrivate || active[1].JoinURL() != "https://t.me/+abc" {
		t.Fatalf("unexpected private channel: %#v", active[1])
	}

	all, err := st.ListChannels(ctx, false)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 channels, got %d (%v)", len(all), err)
	}

	if _, err := st.AddChannel(ctx, store.Channel{ID: -1009, IsPrivate: true}); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for private channel without invite, got %v", err)
	}
}

func TestDeleteChannelRemovesLedgerRows(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.AddChannel(ctx, store.Channel{ID: -1002, InviteLink: "https://t.me/+abc", IsPrivate: true}); err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}
	if err := st.UpsertRequest(ctx, 7, -1002, store.RequestPending); err != nil {
		t.Fatalf("UpsertRequest failed: %v", err)
	}
	if err := st.DeleteChannel(ctx, -1002); err != nil {
		t.Fatalf("DeleteChannel failed: %v", err)
	}
	status, err := st.GetRequestStatus(ctx, 7, -1002)
	if err != nil {
		t.Fatalf("GetRequestStatus failed: %v", err)
	}
	if status != store.RequestNone {
		t.Fatalf("expected NONE after channel delete, got %s", status)
	}
	if err := st.DeleteChannel(ctx, -1002); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestUpsertRefreshesTimestamp(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t), store.WithClock(func() time.Time { return clock }))
	ctx := context.Background()
	if _, err := st.AddChannel(ctx, store.Channel{ID: -1002, InviteLink: "https://t.me/+abc", IsPrivate: true}); err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}

	status, err := st.GetRequestStatus(ctx, 7, -1002)
	if err != nil || status != store.RequestNone {
		t.Fatalf("expected NONE for missing row, got %s (%v)", status, err)
	}
	if err := st.UpsertRequest(ctx, 7, -1002, store.RequestPending); err != nil {
		t.Fatalf("UpsertRequest failed: %v", err)
	}
	clock = clock.Add(time.Hour)
	if err := st.UpsertRequest(ctx, 7, -1002, store.RequestApproved); err != nil {
		t.Fatalf("UpsertRequest failed: %v", err)
	}

	requests, err := st.ListRequests(ctx)
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected one row per (user, channel), got %d", len(requests))
	}
	req := requests[0]
	if req.Status != store.RequestApproved {
		t.Fatalf("expected APPROVED, got %s", req.Status)
	}
	if !req.UpdatedAt.Equal(clock) || !req.UpdatedAt.After(req.CreatedAt) {
		t.Fatalf("expected refreshed updated_at, got created=%s updated=%s", req.CreatedAt, req.UpdatedAt)
	}

	pending, err := st.ListRequests(ctx, store.RequestPending)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected no pending rows, got %d (%v)", len(pending), err)
	}
	if err := st.UpsertRequest(ctx, 7, -1002, store.RequestNone); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid storing NONE, got %v", err)
	}
}

func TestRequestsOutliveChannelRegistration(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := st.UpsertRequest(ctx, 7, -100777, store.RequestPending); err != nil {
		t.Fatalf("UpsertRequest for unregistered channel failed: %v", err)
	}
	if _, err := st.AddChannel(ctx, store.Channel{ID: -100777, InviteLink: "https://t.me/+late", IsPrivate: true}); err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}
	status, err := st.GetRequestStatus(ctx, 7, -100777)
	if err != nil || status != store.RequestPending {
		t.Fatalf("expected PENDING after registration, got %s (%v)", status, err)
	}

	if err := st.DeleteChannel(ctx, -100777); err != nil {
		t.Fatalf("DeleteChannel failed: %v", err)
	}
	status, err = st.GetRequestStatus(ctx, 7, -100777)
	if err != nil || status != store.RequestNone {
		t.Fatalf("expected removal to clear the ledger, got %s (%v)", status, err)
	}
}

func TestCorruptTimestampIsReported(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.SeedTitle(t, st, "YL2024", "Your Lie", 1)
	if err := st.UpsertRequest(ctx, 7, -1002, store.RequestPending); err != nil {
		t.Fatalf("UpsertRequest failed: %v", err)
	}

	raw, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open raw handle: %v", err)
	}
	t.Cleanup(func() { _ = raw.Close() })
	for _, stmt := range []string{
		"UPDATE titles SET created_at = 'yesterday' WHERE code = 'YL2024'",
		"UPDATE access_requests SET updated_at = '2024-13-45' WHERE user_id = 7",
	} {
		if _, err := raw.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}

	_, err = st.GetTitle(ctx, "YL2024")
	if err == nil || store.KindOf(err) != store.KindPersistence {
		t.Fatalf("expected persistence error for corrupt title row, got %v", err)
	}
	_, err = st.ListRequests(ctx)
	if err == nil || store.KindOf(err) != store.KindPersistence {
		t.Fatalf("expected persistence error for corrupt request row, got %v", err)
	}
}

func TestTouchUserAndStats(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t), store.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	if err := st.TouchUser(ctx, store.UserProfile{ID: 10, Username: "old"}); err != nil {
		t.Fatalf("TouchUser failed: %v", err)
	}
	clock = clock.Add(40 * 24 * time.Hour)
	if err := st.TouchUser(ctx, store.UserProfile{ID: 20, FirstName: "Mina"}); err != nil {
		t.Fatalf("TouchUser failed: %v", err)
	}
	clock = clock.Add(2 * 24 * time.Hour)
	if err := st.TouchUser(ctx, store.UserProfile{ID: 30}); err != nil {
		t.Fatalf("TouchUser failed: %v", err)
	}
	if err := st.TouchUser(ctx, store.UserProfile{ID: 30, Username: "third"}); err != nil {
		t.Fatalf("TouchUser failed: %v", err)
	}

	user, err := st.GetUser(ctx, 30)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.TotalRequests != 2 || user.Username != "third" || user.DisplayName() != "@third" {
		t.Fatalf("unexpected user: %#v", user)
	}

	roster, err := st.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs failed: %v", err)
	}
	if len(roster) != 3 || roster[0] != 10 || roster[2] != 30 {
		t.Fatalf("expected roster by join time, got %v", roster)
	}

	testsupport.SeedTitle(t, st, "YL2024", "Your Lie", 2)
	if _, err := st.AddChannel(ctx, store.Channel{ID: -1002, InviteLink: "https://t.me/+abc", IsPrivate: true}); err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}
	if err := st.UpsertRequest(ctx, 20, -1002, store.RequestPending); err != nil {
		t.Fatalf("UpsertRequest failed: %v", err)
	}
	if err := st.IncrementView(ctx, "YL2024", 2); err != nil {
		t.Fatalf("IncrementView failed: %v", err)
	}

	stats, err := st.Stats(ctx, 5)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Titles != 1 || stats.Episodes != 2 || stats.Users != 3 || stats.TotalViews != 1 {
		t.Fatalf("unexpected totals: %#v", stats)
	}
	if stats.ActiveToday != 1 || stats.ActiveMonth != 2 || stats.PendingRequests != 1 {
		t.Fatalf("unexpected activity counters: %#v", stats)
	}
	if len(stats.Popular) != 1 || stats.Popular[0].Code != "YL2024" {
		t.Fatalf("unexpected popular list: %#v", stats.Popular)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := st.SetSetting(ctx, store.SettingArchiveChannel, "-100200"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	values, err := st.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if values[store.SettingArchiveChannel] != "-100200" {
		t.Fatalf("unexpected archive channel: %q", values[store.SettingArchiveChannel])
	}
	if err := st.SetSetting(ctx, "unknown", "x"); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown key, got %v", err)
	}
}

func TestParseRequestStatus(t *testing.T) {
	for _, status := range store.RequestStatuses() {
		parsed, err := store.ParseRequestStatus(string(status))
		if err != nil || parsed != status {
			t.Fatalf("ParseRequestStatus(%s) = %s, %v", status, parsed, err)
		}
	}
	if _, err := store.ParseRequestStatus("pending"); err == nil {
		t.Fatal("expected error for lowercase status")
	}
	if !store.RequestPending.Grants() || !store.RequestApproved.Grants() || store.RequestCancelled.Grants() || store.RequestNone.Grants() {
		t.Fatal("unexpected Grants result")
	}
}
