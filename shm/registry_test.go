//go:build unix

package shm

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/ringbus"
	"github.com/aradilov/ringbus/internal/logger"
)

func newTestRegistry(t *testing.T, dir string, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithDir(dir), WithLogger(logger.Discard())}, opts...)
	reg, err := NewRegistry(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestSharedAcrossRegistries(t *testing.T) {
	dir := t.TempDir()
	producer := newTestRegistry(t, dir)
	consumer := newTestRegistry(t, dir)

	pub, err := producer.GetByteTopic("/imu", 4)
	require.NoError(t, err)
	sub, err := consumer.GetByteTopic("/imu", 4)
	require.NoError(t, err)

	for i := byte(1); i <= 3; i++ {
		epoch, err := pub.Publish([]byte{i, i})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), epoch)
	}
	assert.Equal(t, 3, sub.Len())
	assert.Equal(t, uint64(3), sub.LatestEpoch())

	payload, epoch, ok := sub.TryReceive()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 1}, payload)
	assert.Equal(t, uint64(1), epoch)

	// the producer side sees the consumption
	assert.Equal(t, 2, pub.Len())
}

func TestFirstCapacityWins(t *testing.T) {
	dir := t.TempDir()
	a := newTestRegistry(t, dir)
	b := newTestRegistry(t, dir, WithSlotSize(16))

	ta, err := a.GetByteTopic("/t", 3)
	require.NoError(t, err)
	tb, err := b.GetByteTopic("/t", 100)
	require.NoError(t, err)

	assert.Equal(t, 3, tb.Capacity())
	assert.Equal(t, DefaultSlotSize, tb.SlotSize())
	assert.Equal(t, ta.Capacity(), tb.Capacity())

	// existing segments ignore capacity, even an invalid one
	tc, err := b.GetByteTopic("/t", 0)
	require.NoError(t, err)
	assert.Same(t, tb, tc)
}

func TestInvalidCapacity(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir())
	_, err := reg.GetByteTopic("/none", 0)
	assert.ErrorIs(t, err, ringbus.ErrInvalidCapacity)
	assert.Equal(t, 0, reg.Len())
}

func TestCapacityBeyondAddressableSize(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(t, dir)

	for _, capacity := range []int{math.MaxInt, int(maxCapacity(DefaultSlotSize)) + 1} {
		_, err := reg.GetByteTopic("/huge", capacity)
		assert.ErrorIs(t, err, ringbus.ErrInvalidCapacity, "capacity %d", capacity)
	}
	assert.NoFileExists(t, segmentPath(dir, "/huge"))
	assert.Equal(t, 0, reg.Len())
}

func TestCorruptLengthIsSkipped(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir(), WithSlotSize(32))
	topic, err := reg.GetByteTopic("/c", 4)
	require.NoError(t, err)

	for i := byte(1); i <= 2; i++ {
		_, err := topic.Publish([]byte{i})
		require.NoError(t, err)
	}
	// clobber the length word of the newest and then the oldest slot
	_, length, _ := topic.seg.slot(1)
	*length = 1 << 20

	_, _, ok := topic.PeekLatest()
	assert.False(t, ok)

	_, length, _ = topic.seg.slot(0)
	*length = 1 << 20
	_, _, ok = topic.TryReceive()
	assert.False(t, ok)
	assert.Equal(t, 1, topic.Len())

	_, err = topic.Publish([]byte{3})
	require.NoError(t, err)
	payload, epoch, ok := topic.PeekLatest()
	require.True(t, ok)
	assert.Equal(t, []byte{3}, payload)
	assert.Equal(t, uint64(3), epoch)
}

func TestOverflowDropsOldest(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir())
	topic, err := reg.GetByteTopic("/fast", 3)
	require.NoError(t, err)

	for i := byte(1); i <= 5; i++ {
		_, err := topic.Publish([]byte{i})
		require.NoError(t, err)
	}

	latest, epoch, ok := topic.PeekLatest()
	require.True(t, ok)
	assert.Equal(t, []byte{5}, latest)
	assert.Equal(t, uint64(5), epoch)

	for want := byte(3); want <= 5; want++ {
		payload, epoch, ok := topic.TryReceive()
		require.True(t, ok)
		assert.Equal(t, []byte{want}, payload)
		assert.Equal(t, uint64(want), epoch)
	}
	_, _, ok = topic.TryReceive()
	assert.False(t, ok)

	st := topic.Stats()
	assert.Equal(t, uint64(5), st.Published)
	assert.Equal(t, uint64(3), st.Received)
	assert.Equal(t, uint64(2), st.Dropped)
}

func TestPayloadBounds(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir(), WithSlotSize(8))
	topic, err := reg.GetByteTopic("/small", 2)
	require.NoError(t, err)

	_, err = topic.Publish(make([]byte, 9))
	assert.ErrorIs(t, err, ringbus.ErrPayloadTooLarge)
	assert.Equal(t, uint64(0), topic.LatestEpoch())

	_, err = topic.Publish(nil)
	require.NoError(t, err)
	payload, epoch, ok := topic.TryReceive()
	require.True(t, ok)
	assert.NotNil(t, payload)
	assert.Empty(t, payload)
	assert.Equal(t, uint64(1), epoch)

	full := []byte("12345678")
	_, err = topic.Publish(full)
	require.NoError(t, err)
	got, _, ok := topic.ReceiveInto([]byte("x"))
	require.True(t, ok)
	assert.Equal(t, "x12345678", string(got))
}

func TestLastCloseRemovesSegment(t *testing.T) {
	dir := t.TempDir()
	a, err := NewRegistry(WithDir(dir), WithLogger(logger.Discard()))
	require.NoError(t, err)
	b, err := NewRegistry(WithDir(dir), WithLogger(logger.Discard()))
	require.NoError(t, err)

	_, err = a.GetByteTopic("/gps", 4)
	require.NoError(t, err)
	tb, err := b.GetByteTopic("/gps", 4)
	require.NoError(t, err)

	path := segmentPath(dir, "/gps")
	require.FileExists(t, path)

	require.NoError(t, a.Close())
	assert.FileExists(t, path)

	require.NoError(t, b.Close())
	assert.NoFileExists(t, path)

	_, err = tb.Publish([]byte{1})
	assert.ErrorIs(t, err, ErrClosed)
	_, _, ok := tb.TryReceive()
	assert.False(t, ok)

	_, err = b.GetByteTopic("/gps", 4)
	assert.ErrorIs(t, err, ringbus.ErrRegistryClosed)
	assert.NoError(t, b.Close())
}

func TestReattachAfterRelease(t *testing.T) {
	dir := t.TempDir()
	a, err := NewRegistry(WithDir(dir), WithLogger(logger.Discard()))
	require.NoError(t, err)
	topic, err := a.GetByteTopic("/x", 2)
	require.NoError(t, err)
	_, err = topic.Publish([]byte{1})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b := newTestRegistry(t, dir)
	fresh, err := b.GetByteTopic("/x", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, fresh.Capacity())
	assert.Equal(t, uint64(0), fresh.LatestEpoch())
}

func TestBadSegment(t *testing.T) {
	dir := t.TempDir()
	path := segmentPath(dir, "/junk")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o600))

	reg := newTestRegistry(t, dir)
	_, err := reg.GetByteTopic("/junk", 4)
	assert.ErrorIs(t, err, ErrBadSegment)
}

func TestSegmentPath(t *testing.T) {
	dir := "/dev/shm"
	assert.Equal(t, filepath.Join(dir, "ringbus_%2Fcamera%2Fleft"), segmentPath(dir, "/camera/left"))

	long := segmentPath(dir, string(make([]byte, 500)))
	assert.Len(t, filepath.Base(long), len(filePrefix)+64)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, Remove(dir, "/missing"))

	a := newTestRegistry(t, dir)
	old, err := a.GetByteTopic("/r", 2)
	require.NoError(t, err)
	require.NoError(t, Remove(dir, "/r"))
	assert.NoFileExists(t, segmentPath(dir, "/r"))

	// the old mapping keeps working
	_, err = old.Publish([]byte{1})
	require.NoError(t, err)

	b := newTestRegistry(t, dir)
	fresh, err := b.GetByteTopic("/r", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fresh.LatestEpoch())
	assert.Equal(t, 3, fresh.Capacity())
}

func TestSnapshot(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir())
	for _, name := range []string{"/b", "/a", "/c"} {
		_, err := reg.GetByteTopic(name, 2)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"/a", "/b", "/c"}, reg.Names())

	stats := reg.Snapshot()
	require.Len(t, stats, 3)
	assert.Equal(t, "/a", stats[0].Name)
	assert.Equal(t, 2, stats[0].Capacity)
}

func TestConcurrentAcrossRegistries(t *testing.T) {
	const (
		producers = 4
		perProd   = 2000
	)
	dir := t.TempDir()
	regs := []*Registry{newTestRegistry(t, dir), newTestRegistry(t, dir)}

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[uint64]bool)
	done := make(chan struct{})

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			topic, err := regs[p%2].GetByteTopic("/load", 64)
			if err != nil {
				t.Errorf("attach: %v", err)
				return
			}
			for i := 0; i < perProd; i++ {
				if _, err := topic.Publish([]byte(fmt.Sprintf("%d-%d", p, i))); err != nil {
					t.Errorf("publish: %v", err)
					return
				}
			}
		}(p)
	}

	var cwg sync.WaitGroup
	for c := 0; c < 2; c++ {
		cwg.Add(1)
		go func(c int) {
			defer cwg.Done()
			topic, err := regs[c].GetByteTopic("/load", 64)
			if err != nil {
				t.Errorf("attach: %v", err)
				return
			}
			for {
				_, epoch, ok := topic.TryReceive()
				if ok {
					mu.Lock()
					if seen[epoch] {
						t.Errorf("epoch %d delivered twice", epoch)
					}
					seen[epoch] = true
					mu.Unlock()
					continue
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}(c)
	}

	wg.Wait()
	close(done)
	cwg.Wait()

	topic, err := regs[0].GetByteTopic("/load", 64)
	require.NoError(t, err)
	// drain what the consumers left behind after done
	for {
		_, epoch, ok := topic.TryReceive()
		if !ok {
			break
		}
		seen[epoch] = true
	}

	st := topic.Stats()
	assert.Equal(t, uint64(producers*perProd), st.Published)
	assert.Equal(t, uint64(producers*perProd), st.LatestEpoch)
	assert.Equal(t, st.Published, st.Received+st.Dropped)
	assert.Equal(t, int(st.Received), len(seen))
}

func TestPubSubOverSharedTopic(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir())
	topic, err := reg.GetByteTopic("/state", 1)
	require.NoError(t, err)

	pub := ringbus.NewPublisher(topic)
	sub := ringbus.NewSubscriber(topic)
	assert.False(t, sub.HasNew())

	_, err = pub.Publish([]byte("on"))
	require.NoError(t, err)
	assert.True(t, sub.HasNew())

	payload, epoch, ok := sub.PeekLatest()
	require.True(t, ok)
	assert.Equal(t, "on", string(payload))
	sub.MarkSeen()
	assert.Equal(t, epoch, sub.LastSeen())
	assert.False(t, sub.HasNew())
}
