package behavior

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimestampCollection(t *testing.T) {
	t.Parallel()

	c, err := NewTimestampCollection(
		TimestampDeclaration{Name: "AlarmTime", SetOnEvent: "OnAlarm", ResetOnEvent: "OnReset", ExclusiveTo: "CalmTime"},
		TimestampDeclaration{Name: "CalmTime", SetOnEvent: "OnCalm"},
		TimestampDeclaration{Name: "Manual"},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"AlarmTime", "CalmTime", "Manual"}, c.Names())

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.False(t, c.IsSet("AlarmTime"))
	_, ok := c.ElapsedSince("AlarmTime", t0)
	require.False(t, ok)

	require.True(t, c.HandleEvent(HashEventName("OnAlarm"), t0))
	require.True(t, c.IsSet("AlarmTime"))
	elapsed, ok := c.ElapsedSince("AlarmTime", t0.Add(3*time.Second))
	require.True(t, ok)
	require.Equal(t, 3*time.Second, elapsed)

	// exclusivity works both ways
	c.HandleEvent(HashEventName("OnCalm"), t0.Add(time.Second))
	require.True(t, c.IsSet("CalmTime"))
	require.False(t, c.IsSet("AlarmTime"))
	require.True(t, c.HasBeenSetAtLeastOnce("AlarmTime"))
	c.HandleEvent(HashEventName("OnAlarm"), t0.Add(2*time.Second))
	require.False(t, c.IsSet("CalmTime"))

	c.HandleEvent(HashEventName("OnReset"), t0.Add(3*time.Second))
	require.False(t, c.IsSet("AlarmTime"))
	require.True(t, c.HasBeenSetAtLeastOnce("AlarmTime"))

	require.False(t, c.HandleEvent(HashEventName("Unrelated"), t0))

	require.True(t, c.Set("Manual", t0))
	at, ok := c.Time("Manual")
	require.True(t, ok)
	require.Equal(t, t0, at)
	require.True(t, c.Reset("Manual"))
	require.False(t, c.Set("Missing", t0))
	require.False(t, c.Has("Missing"))

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, TimestampState{Name: "Manual", EverSet: true}, snap[2])
}

func TestTimestampCollection_clone(t *testing.T) {
	t.Parallel()

	defaults, err := NewTimestampCollection(TimestampDeclaration{Name: "Seen", SetOnEvent: "OnSeen"})
	require.NoError(t, err)
	a := defaults.Clone()
	b := defaults.Clone()

	a.HandleEvent(HashEventName("OnSeen"), time.Now())
	require.True(t, a.IsSet("Seen"))
	require.False(t, b.IsSet("Seen"))
	require.False(t, defaults.IsSet("Seen"))
}

func TestNewTimestampCollection_invalid(t *testing.T) {
	t.Parallel()

	for _, decls := range [][]TimestampDeclaration{
		{{Name: ""}},
		{{Name: "A"}, {Name: "A"}},
		{{Name: "A", ExclusiveTo: "B"}},
		{{Name: "A", ExclusiveTo: "A"}},
	} {
		_, err := NewTimestampCollection(decls...)
		require.Error(t, err, "%+v", decls)
	}
}
