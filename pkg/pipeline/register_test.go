package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLastRequestedWins(t *testing.T) {
	var r Register

	first := r.Begin()
	second := r.Begin()

	require.NoError(t, r.Commit(second, &Result{ID: "second"}))
	assert.ErrorIs(t, r.Commit(first, &Result{ID: "first"}), ErrStale)

	snap := r.Load()
	assert.Equal(t, "second", snap.Content.ID)
	assert.Equal(t, uint64(second), snap.Seq)
}

func TestRegisterInOrderCommitsReplace(t *testing.T) {
	var r Register

	first := r.Begin()
	second := r.Begin()

	require.NoError(t, r.Commit(first, &Result{ID: "first"}))
	assert.Equal(t, "first", r.Load().Content.ID)

	require.NoError(t, r.Commit(second, &Result{ID: "second"}))
	assert.Equal(t, "second", r.Load().Content.ID)
}

func TestRegisterClearDropsInFlight(t *testing.T) {
	var r Register

	pending := r.Begin()
	r.Clear()

	assert.Nil(t, r.Load().Content)
	assert.ErrorIs(t, r.Commit(pending, &Result{ID: "late"}), ErrStale)

	next := r.Begin()
	require.NoError(t, r.Commit(next, &Result{ID: "fresh"}))
	assert.Equal(t, "fresh", r.Load().Content.ID)
}

func TestRegisterConcurrentCommits(t *testing.T) {
	var r Register

	tickets := make([]Ticket, 50)
	for i := range tickets {
		tickets[i] = r.Begin()
	}

	var wg sync.WaitGroup
	for _, tk := range tickets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Commit(tk, &Result{})
		}()
	}
	wg.Wait()

	// whatever the completion order, the newest ticket ends up held
	assert.Equal(t, uint64(tickets[len(tickets)-1]), r.Load().Seq)
}
