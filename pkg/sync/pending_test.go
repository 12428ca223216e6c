package sync

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestPendingDrain(t *testing.T) {
	pending := NewPending()
	window := 2 * time.Second

	pending.RecordEvent("/b", epoch)
	pending.RecordEvent("/a", epoch)
	pending.RecordEvent("/c", epoch.Add(time.Second))
	assert.Equal(t, 3, pending.Len())

	assert.Empty(t, pending.DrainExpired(epoch.Add(time.Second), window))
	assert.Equal(t, []string{"/a", "/b"}, pending.DrainExpired(epoch.Add(window), window))
	assert.Equal(t, 1, pending.Len())

	last, ok := pending.LastEvent("/c")
	assert.True(t, ok)
	assert.Equal(t, epoch.Add(time.Second), last)

	_, ok = pending.LastEvent("/a")
	assert.False(t, ok)
}

func TestPendingRefresh(t *testing.T) {
	pending := NewPending()
	pending.RecordEvent("/a", epoch.Add(time.Second))

	// Out of order events never move the timestamp back.
	pending.RecordEvent("/a", epoch)
	last, _ := pending.LastEvent("/a")
	assert.Equal(t, epoch.Add(time.Second), last)

	pending.RecordEvent("/a", epoch.Add(3*time.Second))
	last, _ = pending.LastEvent("/a")
	assert.Equal(t, epoch.Add(3*time.Second), last)
	assert.Equal(t, 1, pending.Len())
}

func TestPendingReadmitKeepsNewer(t *testing.T) {
	pending := NewPending()
	pending.RecordEvent("/a", epoch.Add(5*time.Second))

	pending.Readmit("/a", epoch)
	last, _ := pending.LastEvent("/a")
	assert.Equal(t, epoch.Add(5*time.Second), last)

	pending.Readmit("/b", epoch)
	last, ok := pending.LastEvent("/b")
	assert.True(t, ok)
	assert.Equal(t, epoch, last)
}

// A root is drained exactly when the drain time is at least a window after
// its latest event, and every recorded root is either drained or kept.
func TestPendingDrainProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		window := time.Duration(rapid.IntRange(1, 5000).Draw(t, "windowMs")) * time.Millisecond
		numEvents := rapid.IntRange(0, 50).Draw(t, "numEvents")

		pending := NewPending()
		latest := map[string]time.Time{}
		for i := 0; i < numEvents; i++ {
			root := fmt.Sprintf("/repo%d", rapid.IntRange(0, 5).Draw(t, "repo"))
			at := epoch.Add(time.Duration(rapid.IntRange(0, 10000).Draw(t, "atMs")) * time.Millisecond)
			pending.RecordEvent(root, at)
			if at.After(latest[root]) {
				latest[root] = at
			}
		}

		now := epoch.Add(time.Duration(rapid.IntRange(0, 20000).Draw(t, "nowMs")) * time.Millisecond)
		drained := pending.DrainExpired(now, window)
		if !sort.StringsAreSorted(drained) {
			t.Fatalf("drained roots are not sorted: %v", drained)
		}

		var expDrained []string
		for root, at := range latest {
			if now.Sub(at) >= window {
				expDrained = append(expDrained, root)
			}
		}
		sort.Strings(expDrained)
		if fmt.Sprint(expDrained) != fmt.Sprint(drained) {
			t.Fatalf("expected %v to be drained, got %v", expDrained, drained)
		}
		if pending.Len() != len(latest)-len(drained) {
			t.Fatalf("expected %d roots left, got %d", len(latest)-len(drained), pending.Len())
		}
	})
}
