package supervisor

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plughost.dev/cli/internal/core/domain"
	"plughost.dev/cli/internal/core/domain/process"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testOptions() Options {
	return Options{
		LaunchTimeout:   200 * time.Millisecond,
		ShutdownTimeout: 50 * time.Millisecond,
		QueueSize:       4,
	}
}

func newTestSupervisor(t *testing.T, exec *fakeExecutor, opts Options) (*Supervisor, *recordingDispatcher) {
	t.Helper()

	disp := &recordingDispatcher{}
	sup := NewSupervisor(exec, disp, nil, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sup.Run(ctx) }()

	t.Cleanup(func() {
		_ = sup.Shutdown(context.Background())
		cancel()
	})
	return sup, disp
}

func descriptor(name, executable, args string) domain.PluginDescriptor {
	return domain.PluginDescriptor{
		Name:             name,
		SourcePath:       "/plugins/" + name + ".plugin",
		ExecutablePath:   executable,
		ArgumentLine:     args,
		WorkingDirectory: "/plugins",
	}
}

func TestSupervisor_LaunchDeliversLines(t *testing.T) {
	exec := newFakeExecutor()
	proc := newFakeProcess(100)
	exec.add("python3", proc)

	sup, disp := newTestSupervisor(t, exec, testOptions())

	h, err := sup.Launch(context.Background(), descriptor("indentation", "python3", "indentation.py"))
	require.NoError(t, err)
	assert.Equal(t, StateRunning, h.State())

	cmds := exec.executed()
	require.Len(t, cmds, 1)
	assert.Equal(t, []string{"indentation.py"}, cmds[0].Args())
	assert.Equal(t, "/plugins", cmds[0].WorkingDir())

	proc.write("#Indentation plugin started\nAddMenuItem,menu_Edit(&Edit)\\edit")
	proc.write("ActionReIndent(Re-Indent),after#editActionUnindent,Ctrl+Alt+I\n")

	require.Eventually(t, func() bool {
		return len(disp.linesFor("indentation")) == 2
	}, waitFor, tick)

	assert.Equal(t, []string{
		"#Indentation plugin started",
		`AddMenuItem,menu_Edit(&Edit)\editActionReIndent(Re-Indent),after#editActionUnindent,Ctrl+Alt+I`,
	}, disp.linesFor("indentation"))

	info, ok := sup.Get(h.ID())
	require.True(t, ok)
	assert.Equal(t, 100, info.PID)
	assert.Equal(t, int64(2), info.LinesDelivered)
	assert.Equal(t, "running", info.Status())
}

func TestSupervisor_EmptyExecutableIsRefused(t *testing.T) {
	exec := newFakeExecutor()
	sup, _ := newTestSupervisor(t, exec, testOptions())

	h, err := sup.Launch(context.Background(), descriptor("broken", "", ""))
	assert.Nil(t, h)

	var lerr *LaunchError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "broken", lerr.Plugin)
	assert.ErrorIs(t, err, process.ErrEmptyExecutable)
	assert.Empty(t, exec.executed())
	assert.Empty(t, sup.List())
}

func TestSupervisor_LaunchAllIsolatesFailures(t *testing.T) {
	exec := newFakeExecutor()
	good := newFakeProcess(7)
	exec.add("good", good)
	exec.failures["missing"] = errors.New("file not found")

	sup, disp := newTestSupervisor(t, exec, testOptions())

	parseErr := errors.New("descriptor unreadable")
	seq := func(yield func(domain.PluginDescriptor, error) bool) {
		for _, step := range []struct {
			desc domain.PluginDescriptor
			err  error
		}{
			{desc: descriptor("empty", "", "")},
			{err: parseErr},
			{desc: descriptor("missing", "missing", "")},
			{desc: descriptor("good", "good", "")},
		} {
			if !yield(step.desc, step.err) {
				return
			}
		}
	}

	report := sup.LaunchAll(context.Background(), seq)
	require.Len(t, report.Launched, 1)
	assert.Equal(t, "good", report.Launched[0].Name)
	assert.Len(t, report.Failed, 2)
	assert.Equal(t, []error{parseErr}, report.ParseErrors)
	assert.ErrorIs(t, report.Err(), process.ErrEmptyExecutable)

	good.write("#still alive\n")
	require.Eventually(t, func() bool {
		return slices.Equal(disp.linesFor("good"), []string{"#still alive"})
	}, waitFor, tick)
}

func TestSupervisor_LaunchTimeoutKillsLateProcess(t *testing.T) {
	exec := newFakeExecutor()
	late := newFakeProcess(9)
	exec.add("slow", late)
	exec.hang["slow"] = true

	opts := testOptions()
	opts.LaunchTimeout = 20 * time.Millisecond
	sup, _ := newTestSupervisor(t, exec, opts)

	_, err := sup.Launch(context.Background(), descriptor("slow", "slow", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLaunchTimeout)
	assert.Empty(t, sup.List())

	require.Eventually(t, late.wasKilled, waitFor, tick)
}

func TestSupervisor_UnloadDiscardsPartialLine(t *testing.T) {
	exec := newFakeExecutor()
	proc := newFakeProcess(11)
	exec.add("plug", proc)

	sup, disp := newTestSupervisor(t, exec, testOptions())

	h, err := sup.Launch(context.Background(), descriptor("plug", "plug", ""))
	require.NoError(t, err)

	proc.write("#hello\n#part")
	require.Eventually(t, func() bool {
		info, _ := sup.Get(h.ID())
		return info.BufferedBytes == len("#part")
	}, waitFor, tick)

	require.NoError(t, sup.Unload(h.ID()))

	assert.Equal(t, []string{"#hello"}, disp.linesFor("plug"))
	assert.Empty(t, sup.List())
	assert.Equal(t, StateTerminated, h.State())
	assert.Equal(t, ReasonUnloaded, h.Info().Reason)
	assert.Equal(t, []process.ProcessSignal{process.SignalTerminate}, proc.receivedSignals())
	assert.False(t, proc.wasKilled())

	err = sup.Unload(h.ID())
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestSupervisor_UnloadKillsStubbornProcess(t *testing.T) {
	exec := newFakeExecutor()
	proc := newFakeProcess(12)
	proc.ignoreTerminate = true
	exec.add("stubborn", proc)

	sup, _ := newTestSupervisor(t, exec, testOptions())

	h, err := sup.Launch(context.Background(), descriptor("stubborn", "stubborn", ""))
	require.NoError(t, err)

	require.NoError(t, sup.Unload(h.ID()))
	assert.True(t, proc.wasKilled())
	assert.Equal(t, 137, h.Info().ExitCode)
}

func TestSupervisor_ExitDrainsOutputThenTerminates(t *testing.T) {
	exec := newFakeExecutor()
	proc := newFakeProcess(13)
	exec.add("short", proc)

	sup, disp := newTestSupervisor(t, exec, testOptions())

	h, err := sup.Launch(context.Background(), descriptor("short", "short", ""))
	require.NoError(t, err)

	proc.write("#bye\ntail")
	proc.exit(0)

	require.Eventually(t, func() bool {
		return h.State() == StateTerminated
	}, waitFor, tick)

	info, ok := sup.Get(h.ID())
	require.True(t, ok)
	assert.Equal(t, ReasonExited, info.Reason)
	assert.Equal(t, 0, info.ExitCode)
	assert.Equal(t, 0, info.BufferedBytes)
	assert.Equal(t, "exited (0)", info.Status())
	assert.Equal(t, []string{"#bye"}, disp.linesFor("short"))

	assert.ErrorIs(t, sup.Send(h.ID(), "ping"), ErrNotRunning)
}

func TestSupervisor_ExitReleasesPipes(t *testing.T) {
	exec := newFakeExecutor()
	proc := newFakeProcess(14)
	exec.add("short", proc)

	sup, _ := newTestSupervisor(t, exec, testOptions())

	h, err := sup.Launch(context.Background(), descriptor("short", "short", ""))
	require.NoError(t, err)
	assert.False(t, proc.pipesClosed())

	proc.exit(0)
	require.Eventually(t, proc.pipesClosed, waitFor, tick, "pipes are closed without an unload")

	// Unloading the terminated record afterwards is still clean.
	require.NoError(t, sup.Unload(h.ID()))
	_, ok := sup.Get(h.ID())
	assert.False(t, ok)
}

func TestSupervisor_ExitOfOnePluginLeavesOthersRunning(t *testing.T) {
	exec := newFakeExecutor()
	a := newFakeProcess(20)
	b := newFakeProcess(21)
	exec.add("a", a)
	exec.add("b", b)

	sup, disp := newTestSupervisor(t, exec, testOptions())

	ha, err := sup.Launch(context.Background(), descriptor("a", "a", ""))
	require.NoError(t, err)
	hb, err := sup.Launch(context.Background(), descriptor("b", "b", ""))
	require.NoError(t, err)

	a.exit(1)
	require.Eventually(t, func() bool { return ha.State() == StateTerminated }, waitFor, tick)

	b.write("#b works\n")
	require.Eventually(t, func() bool {
		return slices.Equal(disp.linesFor("b"), []string{"#b works"})
	}, waitFor, tick)
	assert.Equal(t, StateRunning, hb.State())
	assert.Equal(t, 1, ha.Info().ExitCode)

	infos := sup.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, "b", infos[1].Name)
}

func TestSupervisor_SendWritesLine(t *testing.T) {
	exec := newFakeExecutor()
	proc := newFakeProcess(30)
	exec.add("echo", proc)

	sup, _ := newTestSupervisor(t, exec, testOptions())

	h, err := sup.Launch(context.Background(), descriptor("echo", "echo", ""))
	require.NoError(t, err)

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := proc.stdinR.Read(buf)
		received <- string(buf[:n])
	}()

	require.NoError(t, sup.Send(h.ID(), "reload"))
	select {
	case got := <-received:
		assert.Equal(t, "reload\n", got)
	case <-time.After(waitFor):
		t.Fatal("plugin did not receive input")
	}

	assert.ErrorIs(t, sup.Send("nope", "x"), ErrUnknownPlugin)
}

func TestSupervisor_ShutdownStopsEverything(t *testing.T) {
	exec := newFakeExecutor()
	a := newFakeProcess(40)
	b := newFakeProcess(41)
	exec.add("a", a)
	exec.add("b", b)

	sup := NewSupervisor(exec, &recordingDispatcher{}, nil, testOptions())

	_, err := sup.Launch(context.Background(), descriptor("a", "a", ""))
	require.NoError(t, err)
	_, err = sup.Launch(context.Background(), descriptor("b", "b", ""))
	require.NoError(t, err)

	require.NoError(t, sup.Shutdown(context.Background()))
	assert.Empty(t, sup.List())
	assert.False(t, a.IsRunning())
	assert.False(t, b.IsRunning())

	_, err = sup.Launch(context.Background(), descriptor("a", "a", ""))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, sup.Shutdown(context.Background()))
}

func TestSupervisor_LineTooLongIsDropped(t *testing.T) {
	exec := newFakeExecutor()
	proc := newFakeProcess(50)
	exec.add("noisy", proc)

	opts := testOptions()
	opts.MaxLineBytes = 8
	sup, disp := newTestSupervisor(t, exec, opts)

	_, err := sup.Launch(context.Background(), descriptor("noisy", "noisy", ""))
	require.NoError(t, err)

	proc.write("#this line never ends")
	proc.write(" AddMenuItem,m\\a\n#ok\n")

	require.Eventually(t, func() bool {
		return slices.Contains(disp.linesFor("noisy"), "#ok")
	}, waitFor, tick)
	assert.Equal(t, []string{"#ok"}, disp.linesFor("noisy"))
}

func TestSupervisor_FindBySource(t *testing.T) {
	exec := newFakeExecutor()
	exec.add("x", newFakeProcess(60))
	sup, _ := newTestSupervisor(t, exec, testOptions())

	desc := descriptor("x", "x", "")
	_, err := sup.Launch(context.Background(), desc)
	require.NoError(t, err)

	found := sup.FindBySource(desc.SourcePath)
	require.Len(t, found, 1)
	assert.Equal(t, "x", found[0].Name)
	assert.Empty(t, sup.FindBySource("/elsewhere.plugin"))
}

func TestHandleInfo_Uptime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	info := HandleInfo{StartedAt: start}
	assert.Equal(t, time.Minute, info.Uptime(start.Add(time.Minute)))

	info.StoppedAt = start.Add(10 * time.Second)
	assert.Equal(t, 10*time.Second, info.Uptime(start.Add(time.Hour)))
	assert.Zero(t, HandleInfo{}.Uptime(start))
}
