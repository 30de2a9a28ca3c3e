//go:build !windows

package executor

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(out *bytes.Buffer, timeout time.Duration) *Executor {
	return New(Config{
		Shell:   "/bin/sh",
		Timeout: timeout,
		Output:  out,
		Logger:  zerolog.Nop(),
	})
}

func TestRunCombinesOutput(t *testing.T) {
	var display bytes.Buffer
	e := newTestExecutor(&display, 0)

	res, err := e.Run(context.Background(), "echo one; echo two 1>&2; printf three")
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three"}, res.Lines)
	assert.Equal(t, "one\ntwo\nthree", res.Text())
	assert.Equal(t, "one\ntwo\nthree\n", display.String())
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestRunNonZeroExit(t *testing.T) {
	var display bytes.Buffer
	e := newTestExecutor(&display, 0)

	res, err := e.Run(context.Background(), "definitely-not-a-real-command-xyz")
	require.NoError(t, err)
	assert.Equal(t, 127, res.ExitCode)
	assert.Contains(t, res.Text(), "not found")
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	var display bytes.Buffer
	e := newTestExecutor(&display, 300*time.Millisecond)

	start := time.Now()
	res, err := e.Run(context.Background(), "echo started; sleep 30 & sleep 30")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, res.TimedOut)
	require.NotEmpty(t, res.Lines)
	assert.Equal(t, "started", res.Lines[0])
	assert.Equal(t, TimeoutMarker, res.Lines[len(res.Lines)-1])
}

func TestRunCancellation(t *testing.T) {
	var display bytes.Buffer
	e := newTestExecutor(&display, 0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	res, err := e.Run(ctx, "echo partial; sleep 30")
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.False(t, res.TimedOut)
	assert.Equal(t, []string{"partial"}, res.Lines)
}

func TestRunAppliesPingBound(t *testing.T) {
	var display bytes.Buffer
	e := newTestExecutor(&display, 0)

	res, err := e.Run(context.Background(), "echo ping host")
	require.NoError(t, err)
	assert.Equal(t, "echo ping host", res.Command)

	assert.Equal(t, "ping -c 4 localhost", e.Prepare(context.Background(), "ping localhost"))
}

func TestRunEmptyCommand(t *testing.T) {
	e := newTestExecutor(&bytes.Buffer{}, 0)
	_, err := e.Run(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}
