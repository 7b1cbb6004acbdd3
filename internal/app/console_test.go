package app

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlopezr/crosslist/internal/abort"
)

func newTestConsole(input string) (*Console, *bytes.Buffer, *abort.Token) {
	out := &bytes.Buffer{}
	token := abort.NewToken()
	return NewConsole(strings.NewReader(input), out, token), out, token
}

func TestConsoleReadLine(t *testing.T) {
	c, out, _ := newTestConsole("  hello  \n")

	line, err := c.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "hello", line)
	assert.Contains(t, out.String(), "> ")
}

func TestConsoleReadLineEOF(t *testing.T) {
	c, _, _ := newTestConsole("")

	_, err := c.ReadLine("> ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestConsoleReadLineAborted(t *testing.T) {
	// Block stdin forever so only the token can release the prompt.
	r, _ := io.Pipe()
	token := abort.NewToken()
	c := NewConsole(r, &bytes.Buffer{}, token)

	go func() {
		time.Sleep(50 * time.Millisecond)
		token.Trigger()
	}()

	_, err := c.ReadLine("> ")
	assert.ErrorIs(t, err, abort.ErrAborted)
}

func TestConsoleYesNoRetriesUntilAnswered(t *testing.T) {
	c, _, _ := newTestConsole("maybe\nYES\n")

	ok, err := c.YesNo("continue?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsoleYesNoNo(t *testing.T) {
	c, _, _ := newTestConsole("n\n")

	ok, err := c.YesNo("continue?")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsoleChooseOption(t *testing.T) {
	c, out, _ := newTestConsole("0\nnope\n2\n")

	idx, err := c.ChooseOption("pick one:", []string{"wallapop", "milanuncios"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Contains(t, out.String(), "1. wallapop")
	assert.Contains(t, out.String(), "2. milanuncios")
}

func TestConsoleChooseDescription(t *testing.T) {
	c, out, _ := newTestConsole("y\n")

	keep, err := c.ChooseDescription("drafted text", "scraped text")
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Contains(t, out.String(), "drafted text")
	assert.Contains(t, out.String(), "scraped text")
}
