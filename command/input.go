// Package command implements the cursor-based reader over command text.
package command

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// CursorOutOfBoundsError is returned when a read or a cursor move would leave the input.
type CursorOutOfBoundsError struct {
	Cursor int
	Length int
}

func (e *CursorOutOfBoundsError) Error() string {
	if e.Cursor < 0 {
		return fmt.Sprintf("Cursor precedes the input start (%d < 0)", e.Cursor)
	}
	return fmt.Sprintf("Cursor exceeds the input length (%d > %d)", e.Cursor, e.Length-1)
}

// Input is the text of a command with a read cursor. Positions are byte offsets.
type Input struct {
	raw    string
	cursor int
}

func NewInput(raw string) *Input {
	return &Input{raw: raw}
}

func EmptyInput() *Input {
	return &Input{}
}

func (in *Input) Raw() string {
	return in.raw
}

func (in *Input) Cursor() int {
	return in.cursor
}

// SetCursor places the cursor at pos, which must be within [0, RawLength].
func (in *Input) SetCursor(pos int) error {
	if pos < 0 || pos > len(in.raw) {
		return &CursorOutOfBoundsError{Cursor: pos, Length: len(in.raw)}
	}
	in.cursor = pos
	return nil
}

func (in *Input) MoveCursor(n int) error {
	if in.cursor+n < 0 || in.cursor+n > len(in.raw) {
		return &CursorOutOfBoundsError{Cursor: in.cursor + n, Length: len(in.raw)}
	}
	in.cursor += n
	return nil
}

func (in *Input) RawLength() int {
	return len(in.raw)
}

func (in *Input) RemainingLength() int {
	return len(in.raw) - in.cursor
}

func (in *Input) Remaining() string {
	return in.raw[in.cursor:]
}

// Read returns the part of the input behind the cursor.
func (in *Input) Read() string {
	return in.raw[:in.cursor]
}

func (in *Input) HasRemaining() bool {
	return in.cursor < len(in.raw)
}

func (in *Input) IsEmpty() bool {
	return !in.HasRemaining()
}

func (in *Input) CountRemainingTokens() int {
	n := 0
	for _, tok := range strings.Split(in.Remaining(), " ") {
		if tok != "" {
			n++
		}
	}
	return n
}

func (in *Input) AppendString(s string) *Input {
	return &Input{raw: in.raw + s, cursor: in.cursor}
}

// AppendToken appends tok separated by a space unless the remaining input is empty or already
// ends with one.
func (in *Input) AppendToken(tok string) *Input {
	if in.HasRemaining() && !strings.HasSuffix(in.Remaining(), " ") {
		return in.AppendString(" " + tok)
	}
	return in.AppendString(tok)
}

func (in *Input) Copy() *Input {
	return &Input{raw: in.raw, cursor: in.cursor}
}

func (in *Input) PeekString(n int) (string, error) {
	if n < 0 || n > in.RemainingLength() {
		return "", &CursorOutOfBoundsError{Cursor: in.cursor + n, Length: len(in.raw)}
	}
	return in.raw[in.cursor : in.cursor+n], nil
}

func (in *Input) ReadString(n int) (string, error) {
	s, err := in.PeekString(n)
	if err != nil {
		return "", err
	}
	in.cursor += n
	return s, nil
}

func (in *Input) PeekChar() (byte, error) {
	if in.cursor >= len(in.raw) {
		return 0, &CursorOutOfBoundsError{Cursor: in.cursor, Length: len(in.raw)}
	}
	return in.raw[in.cursor], nil
}

func (in *Input) ReadChar() (byte, error) {
	c, err := in.PeekChar()
	if err != nil {
		return 0, err
	}
	in.cursor++
	return c, nil
}

// PeekToken returns the next whitespace-delimited token without moving the cursor.
func (in *Input) PeekToken() string {
	if !in.HasRemaining() {
		return ""
	}

	rest := in.Remaining()
	if !strings.ContainsRune(rest, ' ') {
		return rest
	}

	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		return rest[:i]
	}
	return rest
}

// ReadToken skips leading whitespace and reads up to the next space. The space itself stays unread.
func (in *Input) ReadToken() string {
	return in.SkipWhitespace().ReadTokenUntil(' ')
}

func (in *Input) ReadTokenUntil(end byte) string {
	if !in.HasRemaining() {
		return ""
	}

	rest := in.Remaining()
	i := strings.IndexByte(rest, end)
	if i < 0 {
		in.cursor = len(in.raw)
		return rest
	}

	in.cursor += i
	return rest[:i]
}

func (in *Input) SkipWhitespace() *Input {
	return in.SkipWhitespaceN(-1)
}

// SkipWhitespaceN skips at most limit whitespace bytes. Negative limit means no limit.
func (in *Input) SkipWhitespaceN(limit int) *Input {
	for i := 0; (limit < 0 || i < limit) && in.HasRemaining() && isSpace(in.raw[in.cursor]); i++ {
		in.cursor++
	}
	return in
}

func (in *Input) PeekInt() (int, error) {
	return strconv.Atoi(in.PeekToken())
}

func (in *Input) PeekInt64() (int64, error) {
	return strconv.ParseInt(in.PeekToken(), 10, 64)
}

func (in *Input) PeekFloat64() (float64, error) {
	return strconv.ParseFloat(in.PeekToken(), 64)
}

func (in *Input) ReadInt() (int, error) {
	return strconv.Atoi(in.ReadToken())
}

func (in *Input) ReadInt64() (int64, error) {
	return strconv.ParseInt(in.ReadToken(), 10, 64)
}

func (in *Input) ReadFloat64() (float64, error) {
	return strconv.ParseFloat(in.ReadToken(), 64)
}

func (in *Input) String() string {
	return fmt.Sprintf("%q@%d", in.raw, in.cursor)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
