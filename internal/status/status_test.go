package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgressFormatsPercent(t *testing.T) {
	p := NewProgress(250, 1000)
	assert.Equal(t, int64(250), p.CurrentFrame)
	assert.Equal(t, int64(1000), p.TotalFrames)
	assert.Equal(t, "25.00", p.PercentComplete)

	assert.Equal(t, "0.00", NewProgress(10, 0).PercentComplete)
}

func TestBoardStartsInStartup(t *testing.T) {
	b := NewBoard("encoder-01", "v1.0.0")
	snap := b.Snapshot()
	assert.Equal(t, StateStartup, snap.Message.Status)
	assert.Equal(t, "encoder-01", snap.Message.Hostname)
	assert.Equal(t, "v1.0.0", snap.Message.Version)
	assert.Nil(t, snap.Progress)
}

func TestBoardSetClearsProgress(t *testing.T) {
	b := NewBoard("h", "v")
	b.Set(StateInProgress, "ffmpeg", "Show", "42")
	b.SetProgress(NewProgress(1, 2))
	require.NotNil(t, b.Snapshot().Progress)

	b.Set(StateInProgress, "mkvmerge", "Show", "42")
	snap := b.Snapshot()
	assert.Nil(t, snap.Progress)
	assert.Equal(t, "mkvmerge", snap.Message.Task)
	assert.Equal(t, "Show", snap.Message.JobTitle)
}

func TestBoardSnapshotIsACopy(t *testing.T) {
	b := NewBoard("h", "v")
	b.SetProgress(NewProgress(1, 10))
	snap := b.Snapshot()
	snap.Progress.CurrentFrame = 99

	assert.Equal(t, int64(1), b.Snapshot().Progress.CurrentFrame)
}

func TestBoardConcurrentAccess(t *testing.T) {
	b := NewBoard("h", "v")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			b.Set(StateInProgress, "task", "job", "id")
			b.SetProgress(NewProgress(int64(i), 500))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := b.Snapshot()
			assert.NotEmpty(t, snap.Message.Status)
		}
	}()
	wg.Wait()
}
