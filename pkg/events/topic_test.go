package events

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicPublishOrder(t *testing.T) {
	var topic Topic[string]
	var got []string

	topic.Subscribe(func(v string) { got = append(got, "first:"+v) })
	topic.Subscribe(func(v string) { got = append(got, "second:"+v) })

	topic.Publish("x")

	assert.Equal(t, []string{"first:x", "second:x"}, got)
	assert.Equal(t, 2, topic.Len())
}

func TestTopicUnsubscribe(t *testing.T) {
	var topic Topic[int]
	var a, b int

	unsubA := topic.Subscribe(func(v int) { a += v })
	topic.Subscribe(func(v int) { b += v })

	topic.Publish(1)
	unsubA()
	unsubA()
	topic.Publish(2)

	assert.Equal(t, 1, a)
	assert.Equal(t, 3, b)
	assert.Equal(t, 1, topic.Len())
}

func TestTopicNilSubscriber(t *testing.T) {
	var topic Topic[int]
	unsub := topic.Subscribe(nil)
	require.NotNil(t, unsub)
	unsub()
	assert.Zero(t, topic.Len())
	topic.Publish(1)
}

func TestTopicUnsubscribeDuringPublish(t *testing.T) {
	var topic Topic[int]
	var calls int
	var unsub func()
	unsub = topic.Subscribe(func(int) {
		calls++
		unsub()
	})

	topic.Publish(1)
	topic.Publish(2)

	assert.Equal(t, 1, calls)
}

func TestTopicConcurrentPublish(t *testing.T) {
	var topic Topic[int]
	var total atomic.Int64
	topic.Subscribe(func(v int) { total.Add(int64(v)) })

	var waitGroup sync.WaitGroup
	for i := 0; i < 50; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			topic.Publish(2)
		}()
	}
	waitGroup.Wait()

	assert.Equal(t, int64(100), total.Load())
}
