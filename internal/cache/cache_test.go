package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GeminiChat/internal/session"
)

func TestMemoLoadsOnce(t *testing.T) {
	var calls int32
	m := NewMemo(func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"a", "b"}, nil
	})

	_, ok := m.Loaded()
	assert.False(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, v)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	entry, ok := m.Loaded()
	require.True(t, ok)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestMemoReplaysError(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	m := NewMemo(func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})

	for i := 0; i < 3; i++ {
		_, err := m.Get(context.Background())
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 1, calls, "failures are not retried")
}

func TestGenerateCacheKey(t *testing.T) {
	empty := GenerateCacheKey(nil)
	one := GenerateCacheKey([]session.Turn{{Role: session.RoleUser, Text: "Hello"}})
	two := GenerateCacheKey([]session.Turn{
		{Role: session.RoleUser, Text: "Hello"},
		{Role: session.RoleAssistant, Text: "Hi"},
	})

	assert.Len(t, one, 64)
	assert.NotEqual(t, empty, one)
	assert.NotEqual(t, one, two)
	assert.Equal(t, one, GenerateCacheKey([]session.Turn{{Role: session.RoleUser, Text: "Hello"}}))

	// role and text boundaries are part of the key
	assert.NotEqual(t,
		GenerateCacheKey([]session.Turn{{Role: session.RoleUser, Text: "ab"}}),
		GenerateCacheKey([]session.Turn{{Role: session.RoleUser, Text: "a"}, {Role: session.RoleUser, Text: "b"}}),
	)
}
