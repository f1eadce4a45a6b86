package broadcast_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hik1komori/life-dorama-bot/internal/broadcast"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/notifications"
	"github.com/hik1komori/life-dorama-bot/internal/pacing"
	"github.com/hik1komori/life-dorama-bot/internal/testsupport"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

const operator int64 = 1

var source = transport.MessageRef{ChatID: operator, MessageID: 500}

type staticRoster []int64

func (r staticRoster) ListUserIDs(context.Context) ([]int64, error) { return r, nil }

type failingRoster struct{}

func (failingRoster) ListUserIDs(context.Context) ([]int64, error) {
	return nil, errors.New("database is closed")
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	return m.Called(ctx, event, payload).Error(0)
}

type mockLock struct {
	mock.Mock
}

func (m *mockLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	args := m.Called(ctx)
	release, _ := args.Get(0).(func())
	return release, args.Bool(1), args.Error(2)
}

func recipients(n int) []int64 {
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, int64(100+i))
	}
	return ids
}

func TestBroadcastCountsFailuresAndContinues(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedUsers(t, st, recipients(10)...)
	fake := testsupport.NewTransport()
	fake.FailChat(103)
	fake.FailChat(107)
	clock := pacing.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	notifier := &mockNotifier{}
	notifier.On("Publish", mock.Anything, notifications.EventBroadcastCompleted, mock.MatchedBy(func(p notifications.Payload) bool {
		return p["successful"] == 8 && p["failed"] == 2 && p["percent"] == "80.0"
	})).Return(nil).Once()

	coordinator := broadcast.New(st, fake, pacing.NewInterval(100*time.Millisecond, clock), logging.NewNop(),
		broadcast.WithNotifier(notifier))

	report, err := coordinator.Broadcast(context.Background(), broadcast.Request{OperatorChat: operator, Source: source})
	require.NoError(t, err)
	require.Equal(t, 10, report.Total)
	require.Equal(t, 8, report.Successful)
	require.Equal(t, 2, report.Failed)
	require.Equal(t, "80.0", report.SuccessPercent())
	require.NotEmpty(t, report.RunID)

	require.Len(t, fake.Forwards, 8)
	for _, fwd := range fake.Forwards {
		require.Equal(t, source, fwd.Source)
		require.NotContains(t, []int64{103, 107}, fwd.ChatID)
	}
	require.Len(t, clock.Sleeps(), 10)

	require.Len(t, fake.TextsTo(operator), 1, "progress is edited in place")
	require.Len(t, fake.Edits, 2)
	progress := fake.Texts[0].Ref
	require.Equal(t, progress, fake.Edits[0].Ref)
	require.Contains(t, fake.Edits[0].Text.Body, "Progress: 10/10")
	require.Contains(t, fake.Edits[0].Text.Body, "Xatolar: 2")
	require.Contains(t, fake.Edits[1].Text.Body, "Muvaffaqiyat darajasi: 80.0%")
	notifier.AssertExpectations(t)
}

func TestBroadcastProgressCadence(t *testing.T) {
	fake := testsupport.NewTransport()
	coordinator := broadcast.New(staticRoster(recipients(25)), fake, nil, logging.NewNop())

	_, err := coordinator.Broadcast(context.Background(), broadcast.Request{OperatorChat: operator, Source: source})
	require.NoError(t, err)

	var bodies []string
	for _, edit := range fake.Edits {
		bodies = append(bodies, edit.Text.Body)
	}
	require.Len(t, bodies, 4)
	require.Contains(t, bodies[0], "Progress: 10/25")
	require.Contains(t, bodies[1], "Progress: 20/25")
	require.Contains(t, bodies[2], "Progress: 25/25")
	require.Contains(t, bodies[3], "yakunlandi")
}

func TestBroadcastEmptyRosterSendsNothing(t *testing.T) {
	fake := testsupport.NewTransport()
	coordinator := broadcast.New(staticRoster(nil), fake, nil, logging.NewNop())

	_, err := coordinator.Broadcast(context.Background(), broadcast.Request{OperatorChat: operator, Source: source})
	require.ErrorIs(t, err, broadcast.ErrNoRecipients)
	require.Empty(t, fake.Texts)
	require.Empty(t, fake.Forwards)
}

func TestBroadcastRosterFailure(t *testing.T) {
	fake := testsupport.NewTransport()
	coordinator := broadcast.New(failingRoster{}, fake, nil, logging.NewNop())

	_, err := coordinator.Broadcast(context.Background(), broadcast.Request{OperatorChat: operator, Source: source})
	require.Error(t, err)
	require.NotErrorIs(t, err, broadcast.ErrNoRecipients)
	require.Empty(t, fake.Forwards)
}

func TestBroadcastReportFallsBackToNewMessage(t *testing.T) {
	fake := testsupport.NewTransport()
	fake.FailEdits()
	coordinator := broadcast.New(staticRoster(recipients(3)), fake, nil, logging.NewNop())

	report, err := coordinator.Broadcast(context.Background(), broadcast.Request{OperatorChat: operator, Source: source})
	require.NoError(t, err)
	require.Equal(t, "100.0", report.SuccessPercent())
	texts := fake.TextsTo(operator)
	require.Len(t, texts, 2)
	require.Contains(t, texts[1], "Jami: 3 ta")
}

func TestBroadcastHonoursSharedLock(t *testing.T) {
	fake := testsupport.NewTransport()
	lock := &mockLock{}
	lock.On("TryAcquire", mock.Anything).Return(nil, false, nil).Once()
	coordinator := broadcast.New(staticRoster(recipients(3)), fake, nil, logging.NewNop(), broadcast.WithLock(lock))

	_, err := coordinator.Broadcast(context.Background(), broadcast.Request{OperatorChat: operator, Source: source})
	require.ErrorIs(t, err, broadcast.ErrBroadcastInProgress)
	require.Empty(t, fake.Forwards)

	released := false
	lock.On("TryAcquire", mock.Anything).Return(func() { released = true }, true, nil).Once()
	_, err = coordinator.Broadcast(context.Background(), broadcast.Request{OperatorChat: operator, Source: source})
	require.NoError(t, err)
	require.True(t, released)
	lock.AssertExpectations(t)
}

type blockingPacer struct {
	entered chan struct{}
	release chan struct{}
}

func (p blockingPacer) Wait(ctx context.Context) error {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestBroadcastRejectsConcurrentRun(t *testing.T) {
	fake := testsupport.NewTransport()
	pacer := blockingPacer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	coordinator := broadcast.New(staticRoster(recipients(1)), fake, pacer, logging.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := coordinator.Broadcast(context.Background(), broadcast.Request{OperatorChat: operator, Source: source})
		done <- err
	}()
	<-pacer.entered

	_, err := coordinator.Broadcast(context.Background(), broadcast.Request{OperatorChat: operator, Source: source})
	require.ErrorIs(t, err, broadcast.ErrBroadcastInProgress)

	close(pacer.release)
	require.NoError(t, <-done)
}

func TestBroadcastStopsOnCancellation(t *testing.T) {
	fake := testsupport.NewTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	coordinator := broadcast.New(staticRoster(recipients(5)), fake, nil, logging.NewNop())

	report, err := coordinator.Broadcast(ctx, broadcast.Request{OperatorChat: operator, Source: source})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, report.Successful)
	require.Empty(t, fake.Forwards)
}

func TestSuccessPercent(t *testing.T) {
	cases := []struct {
		report broadcast.Report
		want   string
	}{
		{broadcast.Report{Total: 10, Successful: 8}, "80.0"},
		{broadcast.Report{Total: 3, Successful: 1}, "33.3"},
		{broadcast.Report{Total: 3, Successful: 2}, "66.7"},
		{broadcast.Report{}, "0.0"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.report.SuccessPercent())
	}
}
