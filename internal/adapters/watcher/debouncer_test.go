package watcher_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/petal/internal/adapters/watcher"
)

type calls struct {
	mu    sync.Mutex
	paths [][]string
}

func (c *calls) record(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, paths)
}

func (c *calls) get() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.paths...)
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := &calls{}
		d := watcher.NewDebouncer(100*time.Millisecond, c.record)

		d.Add("/ws/tests/test_b.py")
		d.Add("/ws/setup.py")
		time.Sleep(50 * time.Millisecond)
		d.Add("/ws/setup.py")

		time.Sleep(80 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, c.get(), "window restarts on every change")

		time.Sleep(50 * time.Millisecond)
		synctest.Wait()
		got := c.get()
		require.Len(t, got, 1)
		assert.Equal(t, []string{"/ws/setup.py", "/ws/tests/test_b.py"}, got[0])
	})
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := &calls{}
		d := watcher.NewDebouncer(100*time.Millisecond, c.record)

		d.Add("/ws/a.py")
		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		d.Add("/ws/b.py")
		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, [][]string{{"/ws/a.py"}, {"/ws/b.py"}}, c.get())
	})
}

func TestDebouncer_Stop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := &calls{}
		d := watcher.NewDebouncer(100*time.Millisecond, c.record)

		d.Add("/ws/a.py")
		d.Stop()

		time.Sleep(200 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, c.get())
	})
}

func TestDebouncer_DefaultWindow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := &calls{}
		d := watcher.NewDebouncer(0, c.record)

		d.Add("/ws/a.py")
		time.Sleep(watcher.DefaultDebounceWindow - time.Millisecond)
		synctest.Wait()
		assert.Empty(t, c.get())

		time.Sleep(2 * time.Millisecond)
		synctest.Wait()
		assert.Len(t, c.get(), 1)
	})
}
