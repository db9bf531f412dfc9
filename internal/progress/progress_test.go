package progress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonotonicNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	sink := NewMonotonic(rec)

	sink.Report(0.2, "a")
	sink.Report(0.6, "b")
	sink.Report(0.4, "c")
	sink.Report(1.0, "d")

	require.Equal(t, []Update{
		{Fraction: 0.2, Stage: "a"},
		{Fraction: 0.6, Stage: "b"},
		{Fraction: 0.6, Stage: "c"},
		{Fraction: 1.0, Stage: "d"},
	}, rec.Updates())
}

func TestMonotonicClampsOutOfRange(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	sink := NewMonotonic(rec)

	sink.Report(-3, "negative")
	sink.Report(math.NaN(), "nan")
	sink.Report(7, "huge")

	updates := rec.Updates()
	require.Len(t, updates, 3)
	require.Equal(t, 0.0, updates[0].Fraction)
	require.Equal(t, 0.0, updates[1].Fraction)
	require.Equal(t, 1.0, updates[2].Fraction)
}

func TestMonotonicWithNilSinkDiscards(t *testing.T) {
	t.Parallel()

	sink := NewMonotonic(nil)
	require.NotPanics(t, func() { sink.Report(0.5, "half") })
}

func TestRecorderFinal(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	require.Equal(t, Update{}, rec.Final())

	Func(rec.Report).Report(0.4, "converting audio")
	require.Equal(t, Update{Fraction: 0.4, Stage: "converting audio"}, rec.Final())
}
