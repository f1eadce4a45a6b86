package testsupport

import (
	"context"
	"fmt"
	"testing"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...store.Option) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedTitle creates a title with the given number of episodes. Episode i has
// content reference "file-<code>-<i>".
func SeedTitle(t testing.TB, st *store.Store, code, name string, episodes int) *store.Title {
	t.Helper()

	ctx := context.Background()
	title, err := st.AddTitle(ctx, store.Title{
		Code:        code,
		Name:        name,
		Description: name + " description",
		ReleaseYear: 2024,
		Genre:       "Drama",
		Rating:      8.5,
	})
	if err != nil {
		t.Fatalf("store.AddTitle: %v", err)
	}
	for i := 1; i <= episodes; i++ {
		if _, err := st.AddEpisode(ctx, store.Episode{
			TitleCode:  code,
			Index:      i,
			ContentRef: fmt.Sprintf("file-%s-%d", code, i),
		}); err != nil {
			t.Fatalf("store.AddEpisode: %v", err)
		}
	}
	return title
}

// SeedUsers registers users with the given ids in order.
func SeedUsers(t testing.TB, st *store.Store, ids ...int64) {
	t.Helper()

	for _, id := range ids {
		if err := st.TouchUser(context.Background(), store.UserProfile{ID: id, FirstName: fmt.Sprintf("User%d", id)}); err != nil {
			t.Fatalf("store.TouchUser: %v", err)
		}
	}
}
