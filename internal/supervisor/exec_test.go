package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test: it stands in for llama.cpp when the
// test binary is re-executed by TestExecSpawn_RoundTrip.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, "== Running in interactive mode. ==\n> ")
	if os.Getenv("LLAMAD_HELPER_MODE") == "deaf" {
		// Never reads stdin and only dies to SIGKILL.
		signal.Ignore(os.Interrupt)
		time.Sleep(30 * time.Second)
		os.Exit(0)
	}
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fmt.Fprintf(os.Stdout, "len=%d\n> ", len(sc.Text()))
	}
	os.Exit(0)
}

func TestExecSpawn_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a subprocess")
	}
	helper := NewExecSpawn("GO_WANT_HELPER_PROCESS=1")
	spawn := func(ctx context.Context, _ string, args []string) (Process, error) {
		return helper(ctx, os.Args[0], append([]string{"-test.run=^TestHelperProcess$", "--"}, args...))
	}
	s := New(Config{Spawn: spawn, StopGrace: time.Second})
	s.SetCatalog(testCatalog())

	require.NoError(t, s.LoadModel(context.Background(), "mistral", ""))
	require.Eventually(t, func() bool { return s.Status().Status == StatusIdle }, 5*time.Second, 5*time.Millisecond)
	assert.NotZero(t, s.Status().Pid)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := s.AskQuestion(ctx, user("Hi"))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("len=%d\n> ", len("<s>[INST] Hi [/INST]</s>")), got)

	require.NoError(t, s.UnloadModel(ctx))
	assert.Equal(t, StatusTerminated, s.Status().Status)
}

// deafHelper loads a session whose process never reads its stdin.
func deafHelper(t *testing.T, cfg Config) *Supervisor {
	t.Helper()
	if testing.Short() {
		t.Skip("spawns a subprocess")
	}
	helper := NewExecSpawn("GO_WANT_HELPER_PROCESS=1", "LLAMAD_HELPER_MODE=deaf")
	cfg.Spawn = func(ctx context.Context, _ string, args []string) (Process, error) {
		return helper(ctx, os.Args[0], append([]string{"-test.run=^TestHelperProcess$", "--"}, args...))
	}
	s := New(cfg)
	s.SetCatalog(testCatalog())
	require.NoError(t, s.LoadModel(context.Background(), "mistral", ""))
	require.Eventually(t, func() bool { return s.Status().Status == StatusIdle }, 5*time.Second, 5*time.Millisecond)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// askHuge submits a prompt larger than any pipe buffer and reports the result on the returned channel.
func askHuge(s *Supervisor) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := s.AskQuestion(context.Background(), user(strings.Repeat("x", 256<<10)))
		done <- err
	}()
	return done
}

func statusWithin(t *testing.T, s *Supervisor, d time.Duration) Snapshot {
	t.Helper()
	ch := make(chan Snapshot, 1)
	go func() { ch <- s.Status() }()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(d):
		t.Fatalf("Status() blocked for %s", d)
		return Snapshot{}
	}
}

func TestExecSpawn_StuckPromptWriteKeepsWatchdogAndStatus(t *testing.T) {
	s := deafHelper(t, Config{StopGrace: 300 * time.Millisecond, RequestTimeout: 200 * time.Millisecond})
	done := askHuge(s)

	require.Eventually(t, func() bool { return statusWithin(t, s, time.Second).Status == StatusProcessing }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	statusWithin(t, s, 500*time.Millisecond)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRequestTimeout)
	case <-time.After(3 * time.Second):
		t.Fatal("watchdog did not reject the request")
	}
	require.Eventually(t, func() bool { return s.Status().Status == StatusTerminated }, 5*time.Second, 10*time.Millisecond)
}

func TestExecSpawn_UnloadWhilePromptWriteIsStuck(t *testing.T) {
	s := deafHelper(t, Config{StopGrace: 300 * time.Millisecond})
	done := askHuge(s)
	require.Eventually(t, func() bool { return statusWithin(t, s, time.Second).Status == StatusProcessing }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, s.UnloadModel(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StatusTerminated, statusWithin(t, s, 500*time.Millisecond).Status)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("request not settled after unload")
	}
}

func TestExecSpawn_MissingBinary(t *testing.T) {
	_, err := ExecSpawn(context.Background(), "/nonexistent/llama-main", nil)
	require.Error(t, err)
}
