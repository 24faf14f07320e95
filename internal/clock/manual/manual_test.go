package manual

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdvanceFiresDueTimersInOrder(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	var order []string
	clk.AfterFunc(3*time.Second, func() { order = append(order, "late") })
	clk.AfterFunc(time.Second, func() { order = append(order, "early") })
	clk.AfterFunc(10*time.Second, func() { order = append(order, "never") })

	clk.Advance(2 * time.Second)
	require.Equal(t, []string{"early"}, order)
	require.Equal(t, 2, clk.Pending())

	clk.Advance(time.Second)
	require.Equal(t, []string{"early", "late"}, order)
	require.Equal(t, 1, clk.Pending())
	require.Equal(t, time.Unix(3, 0), clk.Now())
}

func TestStopPreventsFire(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	fired := false
	tm := clk.AfterFunc(time.Second, func() { fired = true })
	require.True(t, tm.Stop())
	require.False(t, tm.Stop())

	clk.Advance(time.Minute)
	require.False(t, fired)
	require.Zero(t, clk.Pending())
}

func TestStopAfterFireReportsFalse(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	tm := clk.AfterFunc(time.Second, func() {})
	clk.Advance(time.Second)
	require.False(t, tm.Stop())
}

// TestCallbackMayReschedule ensures callbacks run outside the clock lock.
func TestCallbackMayReschedule(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	count := 0
	clk.AfterFunc(time.Second, func() {
		count++
		clk.AfterFunc(time.Second, func() { count++ })
	})
	clk.Advance(time.Second)
	require.Equal(t, 1, count)
	clk.Advance(time.Second)
	require.Equal(t, 2, count)
}
