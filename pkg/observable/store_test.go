package observable

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesCurrentAndChanges(t *testing.T) {
	store := New([]string{"a"})

	var seen [][]string
	unsubscribe := store.Subscribe(func(v []string) { seen = append(seen, v) })

	store.Set([]string{"a", "b"})
	store.Update(func(v []string) []string { return append(v, "c") })

	assert.Equal(t, [][]string{{"a"}, {"a", "b"}, {"a", "b", "c"}}, seen)

	unsubscribe()
	unsubscribe()
	store.Set(nil)

	assert.Len(t, seen, 3)
	assert.Equal(t, 0, store.Subscribers())
}

func TestSubscribersNotifiedInOrder(t *testing.T) {
	store := New(0)

	var order []string
	store.Subscribe(func(int) { order = append(order, "first") })
	store.Subscribe(func(int) { order = append(order, "second") })
	order = nil

	store.Set(1)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 1, store.Get())
}

func TestConcurrentChangesDeliverLatestLast(t *testing.T) {
	for run := 0; run < 50; run++ {
		store := New(0)

		var (
			mu   sync.Mutex
			last int
		)
		store.Subscribe(func(v int) {
			if v%2 == 1 {
				// a slow consumer, like a socket emit
				time.Sleep(time.Millisecond)
			}
			mu.Lock()
			last = v
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				store.Update(func(v int) int { return v + 1 })
			}()
		}
		wg.Wait()

		mu.Lock()
		require.Equal(t, store.Get(), last, "run %d", run)
		mu.Unlock()
		require.Equal(t, 8, store.Get())
	}
}

func TestSubscribeSeesValueBeforeLaterChanges(t *testing.T) {
	store := New(0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			store.Update(func(v int) int { return v + 1 })
		}
	}()

	var seen []int
	store.Subscribe(func(v int) { seen = append(seen, v) })
	wg.Wait()

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Equal(t, seen[i-1]+1, seen[i], "no change skipped or reordered")
	}
	assert.Equal(t, 100, seen[len(seen)-1])
}
