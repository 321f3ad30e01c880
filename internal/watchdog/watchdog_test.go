package watchdog_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/captix/internal/watchdog"
)

type fakeProcess struct {
	alive  atomic.Bool
	kills  atomic.Int32
	notify atomic.Int32
}

func newMonitor(t *testing.T, proc *fakeProcess, now time.Time) (*watchdog.Monitor, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "captix_heartbeat_1234")
	require.NoError(t, os.WriteFile(path, []byte("0"), 0600))
	require.NoError(t, os.Chtimes(path, now, now))

	proc.alive.Store(true)
	m := watchdog.NewMonitor(1234, path, 5*time.Second)
	m.CheckInterval = 10 * time.Millisecond
	m.Alive = func(pid int) bool { return proc.alive.Load() }
	m.Kill = func(pid int) error {
		proc.kills.Add(1)
		return nil
	}
	m.Notify = func(title, body string) { proc.notify.Add(1) }
	m.Now = func() time.Time { return now }
	return m, path
}

func TestMonitorHealthy(t *testing.T) {
	proc := &fakeProcess{}
	now := time.Now()
	m, _ := newMonitor(t, proc, now)

	m.Now = func() time.Time { return now.Add(4 * time.Second) }
	require.Equal(t, watchdog.VerdictHealthy, m.Check())
	require.Zero(t, proc.kills.Load())
}

func TestMonitorKillsStaleSessionExactlyOnce(t *testing.T) {
	proc := &fakeProcess{}
	now := time.Now()
	m, path := newMonitor(t, proc, now)
	m.Now = func() time.Time { return now.Add(6 * time.Second) }

	require.Equal(t, watchdog.VerdictKilled, m.Check())
	require.Equal(t, watchdog.VerdictKilled, m.Check())
	require.Equal(t, watchdog.VerdictKilled, m.Run(context.Background()))

	require.Equal(t, int32(1), proc.kills.Load())
	require.Equal(t, int32(1), proc.notify.Load())

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestMonitorProcessGone(t *testing.T) {
	proc := &fakeProcess{}
	m, _ := newMonitor(t, proc, time.Now())
	proc.alive.Store(false)

	require.Equal(t, watchdog.VerdictProcessGone, m.Run(context.Background()))
	require.Zero(t, proc.kills.Load())
}

func TestMonitorHeartbeatRemoved(t *testing.T) {
	proc := &fakeProcess{}
	m, path := newMonitor(t, proc, time.Now())
	require.NoError(t, os.Remove(path))

	require.Equal(t, watchdog.VerdictHeartbeatGone, m.Check())
	require.Zero(t, proc.kills.Load())
}

func TestMonitorRunStopsWithContext(t *testing.T) {
	proc := &fakeProcess{}
	m, _ := newMonitor(t, proc, time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Equal(t, watchdog.VerdictHealthy, m.Run(ctx))
}

func TestHeartbeatLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hb")
	hb := watchdog.NewHeartbeat(path, 10*time.Millisecond)

	require.NoError(t, hb.Start(context.Background()))
	_, err := os.Stat(path)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	require.Eventually(t, func() bool {
		info, err := os.Stat(path)
		return err == nil && info.ModTime().After(old.Add(time.Minute))
	}, time.Second, 10*time.Millisecond)

	hb.Stop()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestTimerFiresOnce(t *testing.T) {
	var fired atomic.Int32
	tm := watchdog.StartTimer("test", 10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, tm.Fired, time.Second, 5*time.Millisecond)
	require.False(t, tm.Stop())
	require.Equal(t, int32(1), fired.Load())
}

func TestTimerStoppedDoesNotFire(t *testing.T) {
	var fired atomic.Int32
	tm := watchdog.StartTimer("test", 50*time.Millisecond, func() { fired.Add(1) })

	require.True(t, tm.Stop())
	time.Sleep(100 * time.Millisecond)
	require.False(t, tm.Fired())
	require.Zero(t, fired.Load())
}

func TestCommandArgs(t *testing.T) {
	args := watchdog.Command(42, "/run/user/1000/captix_heartbeat_42", 5*time.Second, "abc")
	require.Equal(t, []string{
		"watchdog", "--pid", "42",
		"--heartbeat", "/run/user/1000/captix_heartbeat_42",
		"--timeout", "5",
		"--session", "abc",
	}, args)
}
