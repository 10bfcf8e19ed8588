package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	require.True(t, q.enqueue(event{typ: eventDrain, reason: "online"}))
	require.True(t, q.enqueue(event{typ: eventDrain, reason: "visible"}))

	e1, ok := q.tryDequeue()
	require.True(t, ok)
	assert.Equal(t, "online", e1.reason)

	e2, ok := q.tryDequeue()
	require.True(t, ok)
	assert.Equal(t, "visible", e2.reason)

	_, ok = q.tryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_SignalCoalesces(t *testing.T) {
	q := newEventQueue()

	q.enqueue(event{typ: eventDrain})
	q.enqueue(event{typ: eventDrain})
	q.enqueue(event{typ: eventDrain})

	// Buffered signal of 1 coalesces; the consumer drains by looping.
	<-q.wait()
	assert.Equal(t, 3, q.len())
}

func TestEventQueue_CloseRejectsEnqueue(t *testing.T) {
	q := newEventQueue()
	q.close()

	assert.False(t, q.enqueue(event{typ: eventDrain}))
	assert.True(t, q.isClosed())

	// close is idempotent
	q.close()
}

func TestEventQueue_CloseWakesWaiter(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		<-q.wait()
		close(done)
	}()

	q.close()
	<-done
}
