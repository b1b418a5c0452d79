package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizqa/internal/table"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sample() *table.Table {
	return table.FromRecords("a.csv", []string{"x"}, [][]string{{"1"}, {"2"}}, table.InferOptions{})
}

func TestSessionDatasetViews(t *testing.T) {
	s := NewStore(time.Hour).Create()

	_, _, err := s.Current()
	require.ErrorIs(t, err, ErrNoDataset)
	require.ErrorIs(t, s.ShowCleaned(true), ErrNoDataset)

	raw := sample()
	s.SetDataset(raw)
	require.ErrorIs(t, s.ShowCleaned(true), ErrNotCleaned)

	cleaned := sample()
	require.NoError(t, s.SetCleaned(cleaned))
	cur, isCleaned, err := s.Current()
	require.NoError(t, err)
	assert.True(t, isCleaned)
	assert.Same(t, cleaned, cur)

	require.NoError(t, s.ShowCleaned(false))
	cur, isCleaned, _ = s.Current()
	assert.False(t, isCleaned)
	assert.Same(t, raw, cur)

	// A new upload discards the cleaned copy.
	s.SetDataset(sample())
	assert.False(t, s.HasCleaned())
}

func TestSessionCharts(t *testing.T) {
	s := NewStore(0).Create()
	for i := 0; i < MaxCharts+5; i++ {
		s.AddChart(Chart{ID: fmt.Sprint(i), PNG: []byte{1}})
	}
	ids := s.Charts()
	require.Len(t, ids, MaxCharts)
	assert.Equal(t, "5", ids[0])

	_, ok := s.Chart("0")
	assert.False(t, ok)
	c, ok := s.Chart("7")
	require.True(t, ok)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestStoreTTLEviction(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var sizes []int
	store := NewStore(10*time.Minute, WithClock(clock.Now), WithSizeHook(func(n int) { sizes = append(sizes, n) }))

	a := store.Create()
	b := store.Create()
	clock.Advance(6 * time.Minute)
	_, err := store.Get(a.ID)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, store.Evict())
	assert.Equal(t, 1, store.Len())
	_, err = store.Get(b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	clock.Advance(11 * time.Minute)
	_, err = store.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, []int{1, 2, 1, 0}, sizes)
}

func TestStoreGetOrCreate(t *testing.T) {
	store := NewStore(time.Hour)
	s, created := store.GetOrCreate("")
	assert.True(t, created)
	again, created := store.GetOrCreate(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)

	_, created = store.GetOrCreate("unknown")
	assert.True(t, created)
	assert.Equal(t, 2, store.Len())
}

func TestStoreRunStopsWithContext(t *testing.T) {
	store := NewStore(time.Nanosecond)
	store.Create()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore(time.Hour)
	s := store.Create()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := store.Get(s.ID)
			if assert.NoError(t, err) {
				got.AddChart(Chart{ID: fmt.Sprint(i)})
				got.SetAPIKey("k")
			}
			store.Evict()
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Charts(), 20)
	assert.Equal(t, "k", s.APIKey())
}
