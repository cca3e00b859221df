package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawInput(t *testing.T) {
	for _, raw := range []string{"spaghetti monster! ", "oh hello", "cool"} {
		in := NewInput(raw)
		assert.Equal(t, raw, in.Raw())
		assert.Equal(t, len(raw), in.RawLength())
	}
}

func TestCursorMovement(t *testing.T) {
	in := NewInput("spaghetti monster")

	require.NoError(t, in.MoveCursor(10))

	assert.Equal(t, 10, in.Cursor())
	assert.Equal(t, "monster", in.Remaining())
	assert.Equal(t, "spaghetti ", in.Read())
}

func TestCursorRestrictions(t *testing.T) {
	in := NewInput("spaghetti")

	err := in.MoveCursor(10)

	var oob *CursorOutOfBoundsError
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, "Cursor exceeds the input length (10 > 8)", err.Error())
	assert.Equal(t, 0, in.Cursor())

	require.NoError(t, in.MoveCursor(4))
	require.ErrorAs(t, in.MoveCursor(-5), &oob)
	assert.Equal(t, -1, oob.Cursor)
	assert.Equal(t, "Cursor precedes the input start (-1 < 0)", oob.Error())
	assert.Equal(t, 4, in.Cursor())
	require.NoError(t, in.MoveCursor(-4))

	assert.Error(t, in.SetCursor(-1))
	assert.Error(t, in.SetCursor(10))
	assert.NoError(t, in.SetCursor(9))
	assert.True(t, in.IsEmpty())
}

func TestPeekAndReadString(t *testing.T) {
	in := NewInput("spaghetti monster")
	require.NoError(t, in.MoveCursor(10))

	s, err := in.PeekString(7)
	require.NoError(t, err)
	assert.Equal(t, "monster", s)
	assert.Equal(t, 10, in.Cursor())

	_, err = in.PeekString(8)
	assert.Error(t, err)

	var oob *CursorOutOfBoundsError
	_, err = in.PeekString(-1)
	require.ErrorAs(t, err, &oob)
	_, err = in.ReadString(-3)
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, 10, in.Cursor())

	_, err = in.ReadString(8)
	assert.Error(t, err)
	assert.Equal(t, 10, in.Cursor())

	s, err = in.ReadString(7)
	require.NoError(t, err)
	assert.Equal(t, "monster", s)
	assert.Equal(t, 17, in.Cursor())
}

func TestPeekAndReadChar(t *testing.T) {
	in := NewInput("spaghetti monster")
	require.NoError(t, in.MoveCursor(10))

	c, err := in.PeekChar()
	require.NoError(t, err)
	assert.Equal(t, byte('m'), c)
	assert.Equal(t, 10, in.Cursor())

	c, err = in.ReadChar()
	require.NoError(t, err)
	assert.Equal(t, byte('m'), c)
	assert.Equal(t, 11, in.Cursor())

	end := NewInput("spaghetti")
	require.NoError(t, end.MoveCursor(9))
	_, err = end.PeekChar()
	assert.Error(t, err)
	_, err = end.ReadChar()
	assert.Error(t, err)
}

func TestPeekToken(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"spaghetti", "spaghetti"},
		{"spaghetti monster attacks", "spaghetti"},
		{" spaghetti monster ", "spaghetti"},
		{"  spaghetti monster", "spaghetti"},
		{" ", ""},
		{"  ", ""},
	}

	for _, tt := range tests {
		in := NewInput(tt.raw)
		assert.Equal(t, tt.want, in.PeekToken(), "input %q", tt.raw)
		assert.Equal(t, 0, in.Cursor())
	}
}

func TestReadToken(t *testing.T) {
	tests := []struct {
		raw       string
		token     string
		remaining string
		cursor    int
		read      string
	}{
		{"", "", "", 0, ""},
		{"spaghetti", "spaghetti", "", 9, "spaghetti"},
		{"spaghetti monster attacks", "spaghetti", " monster attacks", 9, "spaghetti"},
		{"     spaghetti monster attacks", "spaghetti", " monster attacks", 14, "     spaghetti"},
	}

	for _, tt := range tests {
		in := NewInput(tt.raw)
		assert.Equal(t, tt.token, in.ReadToken())
		assert.Equal(t, tt.remaining, in.Remaining())
		assert.Equal(t, tt.cursor, in.Cursor())
		assert.Equal(t, len(tt.remaining), in.RemainingLength())
		assert.Equal(t, tt.read, in.Read())
	}
}

func TestReadTokensInSequence(t *testing.T) {
	in := NewInput("tasks show 42")

	assert.Equal(t, 3, in.CountRemainingTokens())
	assert.Equal(t, "tasks", in.ReadToken())
	assert.Equal(t, "show", in.ReadToken())

	id, err := in.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "", in.ReadToken())

	_, err = in.ReadInt()
	assert.Error(t, err)
}

func TestSkipWhitespace(t *testing.T) {
	in := NewInput("  spaghetti")
	in.SkipWhitespace()
	assert.Equal(t, "spaghetti", in.Remaining())

	blank := NewInput("  ")
	blank.SkipWhitespace()
	assert.Empty(t, blank.Remaining())

	word := NewInput("spaghetti")
	word.SkipWhitespace()
	assert.Equal(t, "spaghetti", word.Remaining())

	limited := NewInput("   spaghetti")
	limited.SkipWhitespaceN(1)
	assert.Equal(t, "  spaghetti", limited.Remaining())
}

func TestAppendToken(t *testing.T) {
	in := NewInput("tasks")
	assert.Equal(t, "tasks list", in.AppendToken("list").Raw())
	assert.Equal(t, "tasks", in.Raw())

	spaced := NewInput("tasks ")
	assert.Equal(t, "tasks list", spaced.AppendToken("list").Raw())

	consumed := NewInput("tasks")
	consumed.ReadToken()
	assert.Equal(t, "taskslist", consumed.AppendToken("list").Raw())

	cp := consumed.Copy()
	assert.Equal(t, consumed.Cursor(), cp.Cursor())
	assert.Equal(t, consumed.Raw(), cp.Raw())
}

func TestNumbers(t *testing.T) {
	in := NewInput("2.5 7")

	f, err := in.PeekFloat64()
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	f, err = in.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	n, err := in.PeekInt()
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n64, err := in.PeekInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(7), n64)
}
