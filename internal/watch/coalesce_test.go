package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, c *coalescer, window time.Duration) []Event {
	t.Helper()
	select {
	case batch := <-c.output():
		return batch
	case <-time.After(window*10 + 200*time.Millisecond):
		t.Fatal("no batch emitted")
		return nil
	}
}

func TestCoalescer_CreateThenModifyStaysCreate(t *testing.T) {
	c := newCoalescer(20 * time.Millisecond)
	defer c.stop()

	c.add(Event{Path: "/a", Op: OpCreate})
	c.add(Event{Path: "/a", Op: OpModify})

	batch := drain(t, c, 20*time.Millisecond)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Op)
}

func TestCoalescer_CreateThenDeleteCancelsOut(t *testing.T) {
	c := newCoalescer(20 * time.Millisecond)
	defer c.stop()

	c.add(Event{Path: "/a", Op: OpCreate})
	c.add(Event{Path: "/a", Op: OpDelete})
	c.add(Event{Path: "/b", Op: OpModify})

	batch := drain(t, c, 20*time.Millisecond)
	require.Len(t, batch, 1)
	assert.Equal(t, "/b", batch[0].Path)
}

func TestCoalescer_ModifyThenDeleteBecomesDelete(t *testing.T) {
	c := newCoalescer(20 * time.Millisecond)
	defer c.stop()

	c.add(Event{Path: "/a", Op: OpModify})
	c.add(Event{Path: "/a", Op: OpDelete})

	batch := drain(t, c, 20*time.Millisecond)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Op)
}

func TestCoalescer_DeleteThenCreateBecomesModify(t *testing.T) {
	c := newCoalescer(20 * time.Millisecond)
	defer c.stop()

	c.add(Event{Path: "/a", Op: OpDelete})
	c.add(Event{Path: "/a", Op: OpCreate})

	batch := drain(t, c, 20*time.Millisecond)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Op)
}

func TestCoalescer_DistinctPathsAllSurvive(t *testing.T) {
	c := newCoalescer(20 * time.Millisecond)
	defer c.stop()

	c.add(Event{Path: "/a", Op: OpCreate})
	c.add(Event{Path: "/b", Op: OpModify})
	c.add(Event{Path: "/c", Op: OpDelete})

	batch := drain(t, c, 20*time.Millisecond)
	assert.Len(t, batch, 3)
}

func TestCoalescer_AddAfterStopIsNoop(t *testing.T) {
	c := newCoalescer(10 * time.Millisecond)
	c.stop()
	c.add(Event{Path: "/a", Op: OpCreate})

	_, open := <-c.output()
	assert.False(t, open)
}
