package batch

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errBroken = errors.New("broken")

func TestResultsPartialFailure(t *testing.T) {
	results := Results[string]{
		{ID: "1", Item: "a.txt"},
		{ID: "2", Item: "b.txt", Err: errBroken},
		{ID: "3", Item: "c.txt"},
	}

	assert.Equal(t, []string{"a.txt", "c.txt"}, results.Succeeded())
	failed := results.Failed()
	assert.Len(t, failed, 1)
	assert.Equal(t, "2", failed[0].ID)
	assert.False(t, results.AllOK())
	assert.ErrorIs(t, results.Err(), errBroken)
}

func TestResultsAllOK(t *testing.T) {
	results := Results[int]{{ID: "a", Item: 1}, {ID: "b", Item: 2}}

	assert.True(t, results.AllOK())
	assert.NoError(t, results.Err())
	assert.Empty(t, results.Failed())

	var empty Results[int]
	assert.True(t, empty.AllOK())
	assert.Empty(t, empty.Succeeded())
}

func TestCollectorKeepsSlotOrder(t *testing.T) {
	collector := NewCollector[int](10)

	var waitGroup sync.WaitGroup
	for i := 9; i >= 0; i-- {
		waitGroup.Add(1)
		go func(slot int) {
			defer waitGroup.Done()
			collector.Set(slot, Result[int]{Item: slot})
		}(i)
	}
	waitGroup.Wait()

	results := collector.Results()
	for i, r := range results {
		assert.Equal(t, i, r.Item)
	}
}
