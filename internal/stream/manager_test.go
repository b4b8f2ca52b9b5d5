package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-companion/internal/domain"
)

func TestManager_ServeLifecycle(t *testing.T) {
	m := NewManager(sequenceFeed(domain.TokenUpdate{Price: 1}), fastConfig, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "mint", rec) }()

	require.Eventually(t, func() bool { return m.Count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Zero(t, m.Count())
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m := NewManager(sequenceFeed(domain.TokenUpdate{Price: 1}), fastConfig, quietLogger())

	a, err := m.Open("mint", &recorder{})
	require.NoError(t, err)
	b, err := m.Open("mint", &recorder{})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, m.Count())

	m.Remove(a.ID)
	m.Remove(a.ID)
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, StateClosed, a.State())
	assert.NotEqual(t, StateClosed, b.State())
}

func TestManager_CloseAll(t *testing.T) {
	m := NewManager(sequenceFeed(domain.TokenUpdate{Price: 1}), fastConfig, quietLogger())

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { done <- m.Serve(context.Background(), "mint", &recorder{}) }()
	}
	require.Eventually(t, func() bool { return m.Count() == 2 }, time.Second, 5*time.Millisecond)

	m.CloseAll()
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Serve did not return after CloseAll")
		}
	}
	assert.Zero(t, m.Count())

	_, err := m.Open("mint", &recorder{})
	assert.ErrorIs(t, err, ErrShuttingDown)
}
