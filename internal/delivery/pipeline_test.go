package delivery_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/delivery"
	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/pacing"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/testsupport"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

const viewer int64 = 77

func newPipeline(t *testing.T, episodes int) (*store.Store, *testsupport.Transport, *pacing.FakeClock, *delivery.Pipeline) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedTitle(t, st, "YL2024", "Your Lie", episodes)
	fake := testsupport.NewTransport()
	clock := pacing.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	pacers := func() pacing.Pacer { return pacing.NewInterval(time.Second, clock) }
	pipeline := delivery.NewPipeline(st, fake, pacers, logging.NewNop())
	return st, fake, clock, pipeline
}

func TestSendAllToleratesFailedEpisode(t *testing.T) {
	st, fake, clock, pipeline := newPipeline(t, 3)
	fake.FailVideo("file-YL2024-2")

	result, err := pipeline.SendAll(context.Background(), viewer, "YL2024")
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
	require.Equal(t, 2, result.Sent)
	require.Equal(t, 1, result.Failed)
	require.NotEmpty(t, result.RunID)

	require.Equal(t, []string{"file-YL2024-1", "file-YL2024-3"}, fake.VideoRefs(viewer))
	texts := fake.TextsTo(viewer)
	require.Len(t, texts, 2)
	require.Contains(t, texts[0], "3 ta qism yuklanmoqda")
	require.Contains(t, texts[1], "Barcha 2 qism muvaffaqiyatli yuklandi")
	require.Contains(t, texts[1], "1 qism yuborilmadi")

	require.Equal(t, 3*time.Second, clock.Elapsed())

	ctx := context.Background()
	for index, want := range map[int]int64{1: 1, 2: 0, 3: 1} {
		episode, err := st.GetEpisode(ctx, "YL2024", index)
		require.NoError(t, err)
		require.Equal(t, want, episode.Views, "episode %d", index)
	}
}

func TestSendAllWithNoEpisodesStillCompletes(t *testing.T) {
	_, fake, clock, pipeline := newPipeline(t, 0)

	result, err := pipeline.SendAll(context.Background(), viewer, "YL2024")
	require.NoError(t, err)
	require.Zero(t, result.Total)
	require.Zero(t, result.Sent)
	texts := fake.TextsTo(viewer)
	require.Len(t, texts, 2)
	require.Contains(t, texts[1], "Barcha 0 qism")
	require.Empty(t, clock.Sleeps())
}

func TestSendAllUnknownTitleSendsNothing(t *testing.T) {
	_, fake, _, pipeline := newPipeline(t, 1)

	_, err := pipeline.SendAll(context.Background(), viewer, "NOPE")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Empty(t, fake.TextsTo(viewer))
	require.Empty(t, fake.VideoRefs(viewer))
}

func TestSendAllSummaryFailureIsNotFatal(t *testing.T) {
	_, fake, _, pipeline := newPipeline(t, 2)
	fake.FailChat(viewer)

	result, err := pipeline.SendAll(context.Background(), viewer, "YL2024")
	require.NoError(t, err)
	require.Equal(t, 0, result.Sent)
	require.Equal(t, 2, result.Failed)
}

func TestSendAllStopsOnCancellation(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedTitle(t, st, "YL2024", "Your Lie", 3)
	fake := testsupport.NewTransport()
	ctx, cancel := context.WithCancel(context.Background())
	pipeline := delivery.NewPipeline(st, fake, cancelAfter{n: 1, cancel: cancel}.pacer, logging.NewNop())

	result, err := pipeline.SendAll(ctx, viewer, "YL2024")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, result.Sent)
	require.Len(t, fake.TextsTo(viewer), 1, "no completion summary after shutdown")
}

func TestConcurrentRunsDoNotSharePacing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pacing.Mode = config.PacingModeTokenBucket
	cfg.Pacing.EpisodeIntervalMS = int(time.Hour / time.Millisecond)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedTitle(t, st, "YL2024", "Your Lie", 1)
	testsupport.SeedTitle(t, st, "NY2025", "New Year", 1)
	fake := testsupport.NewTransport()
	clock := pacing.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	pipeline := delivery.NewPipeline(st, fake, pacing.Episodes(cfg, clock), logging.NewNop())

	var wg sync.WaitGroup
	for i, code := range []string{"YL2024", "NY2025"} {
		wg.Add(1)
		go func(dest int64, code string) {
			defer wg.Done()
			result, err := pipeline.SendAll(context.Background(), dest, code)
			assert.NoError(t, err)
			assert.Equal(t, 1, result.Sent)
		}(viewer+int64(i), code)
	}
	wg.Wait()

	require.Empty(t, clock.Sleeps(), "each run starts with a full bucket")
	require.Equal(t, []string{"file-YL2024-1"}, fake.VideoRefs(viewer))
	require.Equal(t, []string{"file-NY2025-1"}, fake.VideoRefs(viewer+1))
}

type cancelAfter struct {
	n      int
	cancel context.CancelFunc
}

func (c cancelAfter) pacer() pacing.Pacer {
	calls := 0
	return pacerFunc(func(ctx context.Context) error {
		calls++
		if calls > c.n {
			c.cancel()
			return ctx.Err()
		}
		return nil
	})
}

type pacerFunc func(ctx context.Context) error

func (f pacerFunc) Wait(ctx context.Context) error { return f(ctx) }

func TestSendEpisodeUsesDefaultCaption(t *testing.T) {
	st, fake, _, pipeline := newPipeline(t, 2)

	require.NoError(t, pipeline.SendEpisode(context.Background(), viewer, "yl2024", 2))
	require.Len(t, fake.Videos, 1)
	video := fake.Videos[0].Video
	require.Equal(t, "📺 Your Lie\n\nQism: 2", video.Caption)
	require.True(t, video.Protect)

	episode, err := st.GetEpisode(context.Background(), "YL2024", 2)
	require.NoError(t, err)
	require.EqualValues(t, 1, episode.Views)

	err = pipeline.SendEpisode(context.Background(), viewer, "YL2024", 9)
	require.ErrorIs(t, err, store.ErrNotFound)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetTitle(ctx context.Context, code string) (*store.Title, error) {
	args := m.Called(ctx, code)
	title, _ := args.Get(0).(*store.Title)
	return title, args.Error(1)
}

func (m *mockCatalog) GetEpisode(ctx context.Context, code string, index int) (*store.Episode, error) {
	args := m.Called(ctx, code, index)
	episode, _ := args.Get(0).(*store.Episode)
	return episode, args.Error(1)
}

func (m *mockCatalog) ListEpisodes(ctx context.Context, code string) ([]store.Episode, error) {
	args := m.Called(ctx, code)
	episodes, _ := args.Get(0).([]store.Episode)
	return episodes, args.Error(1)
}

func (m *mockCatalog) IncrementView(ctx context.Context, code string, index int) error {
	return m.Called(ctx, code, index).Error(0)
}

func TestSendOneCountsSuccessWhenViewUpdateFails(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.On("IncrementView", mock.Anything, "YL2024", 1).Return(errors.New("database is locked")).Once()
	fake := testsupport.NewTransport()
	pipeline := delivery.NewPipeline(catalog, fake, nil, logging.NewNop(), delivery.WithProtectedContent(false))

	title := store.Title{Code: "YL2024", Name: "Your Lie"}
	episode := store.Episode{TitleCode: "YL2024", Index: 1, ContentRef: "file-1", Caption: "custom"}
	require.NoError(t, pipeline.SendOne(context.Background(), viewer, title, episode))
	require.Equal(t, "custom", fake.Videos[0].Video.Caption)
	require.False(t, fake.Videos[0].Video.Protect)
	catalog.AssertExpectations(t)
}

func TestSendOneDoesNotCountFailedSend(t *testing.T) {
	catalog := &mockCatalog{}
	fake := testsupport.NewTransport()
	fake.FailVideo("file-1")
	pipeline := delivery.NewPipeline(catalog, fake, nil, logging.NewNop())

	err := pipeline.SendOne(context.Background(), viewer, store.Title{Code: "X"}, store.Episode{TitleCode: "X", Index: 1, ContentRef: "file-1"})
	require.ErrorIs(t, err, testsupport.ErrInjected)
	catalog.AssertNotCalled(t, "IncrementView", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompletionMarkupIsAttached(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedTitle(t, st, "YL2024", "Your Lie", 1)
	fake := testsupport.NewTransport()
	reply := transport.ReplyKeyboard{{"🔍 Qidirish"}}
	pipeline := delivery.NewPipeline(st, fake, nil, logging.NewNop(), delivery.WithCompletionMarkup(nil, reply))

	_, err := pipeline.SendAll(context.Background(), viewer, "YL2024")
	require.NoError(t, err)
	last, ok := fake.LastText(viewer)
	require.True(t, ok)
	require.Equal(t, reply, last.Reply)
}

func TestInfoTextEscapesAndListsMetadata(t *testing.T) {
	title := store.Title{Code: "A&B", Name: "<Love>", ReleaseYear: 2021, Genre: "Romance", Rating: 8.7}
	text := delivery.InfoText(title, 4)
	for _, want := range []string{"&lt;Love&gt;", "<code>A&amp;B</code>", "Jami qismlar: 4 ta", "Yil: 2021", "Janr: Romance", "Reyting: 8.7/10", "4 ta qism yuklanmoqda"} {
		require.True(t, strings.Contains(text, want), "missing %q in %q", want, text)
	}
}
