package calibrate

import (
	"testing"
	"time"

	"github.com/robmorgan/lightplan/cuelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestProbeMeasuresDelay(t *testing.T) {
	t.Parallel()

	var sent []string
	clk := clocktesting.NewFakeClock(time.Unix(1700000000, 0))
	p := NewProbe(cuelist.SenderFunc(func(text string) { sent = append(sent, text) }), clk)

	assert.False(t, p.Running())
	assert.Equal(t, time.Duration(0), p.Elapsed())

	p.Send("!dim")
	assert.True(t, p.Running())
	assert.Equal(t, []string{"!dim"}, sent)

	clk.Step(2345*time.Millisecond + 600*time.Microsecond)
	assert.Equal(t, 2345*time.Millisecond+600*time.Microsecond, p.Elapsed())

	delay, err := p.Stop()
	require.NoError(t, err)
	assert.Equal(t, int64(2346), delay)
	assert.False(t, p.Running())
}

func TestProbeResendRestarts(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakeClock(time.Unix(1700000000, 0))
	p := NewProbe(cuelist.SenderFunc(func(string) {}), clk)

	p.Send("!dim")
	clk.Step(5 * time.Second)
	p.Send("!arctic")
	clk.Step(1500 * time.Millisecond)

	delay, err := p.Stop()
	require.NoError(t, err)
	assert.Equal(t, int64(1500), delay)
}

func TestProbeStopWithoutSend(t *testing.T) {
	t.Parallel()

	p := NewProbe(cuelist.SenderFunc(func(string) {}), nil)

	_, err := p.Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
}
