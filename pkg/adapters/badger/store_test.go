package badger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/deckflow/pkg/adapters/badger"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_Contract(t *testing.T) {
	ports.RunRepositoryContract(t, openStore(t))
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := badger.Open(badger.Config{Path: dir})
	require.NoError(t, err)
	p, err := domain.NewProject("Durable", "")
	require.NoError(t, err)
	require.NoError(t, store.CreateProject(ctx, p))
	require.NoError(t, store.CreateSlide(ctx, p.ID, domain.Slide{SlideNumber: 3, Title: "Kept"}))
	require.NoError(t, store.Close())

	reopened, err := badger.Open(badger.Config{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Durable", got.Title)
	slide, err := reopened.GetSlide(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "Kept", slide.Title)
}

func TestBadgerStore_ConcurrentAppends(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := domain.NewMessage(domain.RoleUser, fmt.Sprintf("msg %d", i))
			if assert.NoError(t, err) {
				assert.NoError(t, store.CreateMessage(ctx, "p1", m))
			}
		}(i)
	}
	wg.Wait()

	msgs, total, err := store.ListMessages(ctx, "p1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, total)
	assert.Len(t, msgs, 20)
}

func TestBadgerStore_RequiresPath(t *testing.T) {
	_, err := badger.Open(badger.Config{})
	assert.Error(t, err)
}
