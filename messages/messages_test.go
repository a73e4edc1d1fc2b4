package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(msgs []Message) []string {
	out := []string{}
	for _, m := range msgs {
		out = append(out, m.Author+": "+m.Text)
	}
	return out
}

func TestPostAndRecent(t *testing.T) {
	b := NewBoard()
	at := time.Date(2023, 3, 14, 8, 0, 0, 0, time.UTC)

	require.NoError(t, b.Post("::ffff:10.0.0.1", "hello", at))
	require.NoError(t, b.Post("10.0.0.2", "hi", at.Add(time.Minute)))
	require.NoError(t, b.Post("::1", "yo", at.Add(2*time.Minute)))

	assert.Equal(t, []string{
		"10.0.0.1: hello",
		"10.0.0.2: hi",
		"::1: yo",
	}, texts(b.Recent(10)))

	recent := b.Recent(2)
	assert.Equal(t, []string{"10.0.0.2: hi", "::1: yo"}, texts(recent))
	assert.Equal(t, at.Add(time.Minute), recent[0].ReceivedAt)

	assert.Equal(t, 0, len(b.Recent(0)))
}

func TestPostEmpty(t *testing.T) {
	b := NewBoard()
	assert.ErrorIs(t, b.Post("10.0.0.1", "", time.Now()), ErrEmptyMessage)
	assert.Equal(t, 0, len(b.Recent(10)))
}

func TestAlias(t *testing.T) {
	b := NewBoard()
	at := time.Date(2023, 3, 14, 8, 0, 0, 0, time.UTC)

	require.NoError(t, b.Post("::ffff:10.0.0.1", "before", at))
	require.NoError(t, b.Post("::ffff:10.0.0.1", "/alias tom", at))
	require.NoError(t, b.Post("::ffff:10.0.0.1", "after", at))
	require.NoError(t, b.Post("10.0.0.2", "other", at))

	// Alias commands are not messages, and aliases apply
	// retroactively
	assert.Equal(t, []string{
		"tom: before",
		"tom: after",
		"10.0.0.2: other",
	}, texts(b.Recent(10)))

	b.Alias("10.0.0.2", "jo")
	assert.Equal(t, "jo: other", texts(b.Recent(1))[0])
}

func TestCapacity(t *testing.T) {
	b := NewBoard()
	b.Capacity = 2
	at := time.Date(2023, 3, 14, 8, 0, 0, 0, time.UTC)

	require.NoError(t, b.Post("a", "1", at))
	require.NoError(t, b.Post("a", "2", at))
	require.NoError(t, b.Post("a", "3", at))

	assert.Equal(t, []string{"a: 2", "a: 3"}, texts(b.Recent(10)))
}
