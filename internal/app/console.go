package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lithammer/dedent"

	"github.com/mlopezr/crosslist/internal/abort"
)

// Console is the operator channel. Stdin is read by a single goroutine and
// handed over line by line, so every prompt can keep polling the abort token
// while it waits.
type Console struct {
	lines <-chan string
	out   io.Writer
	token *abort.Token
}

func NewConsole(in io.Reader, out io.Writer, token *abort.Token) *Console {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	return &Console{lines: lines, out: out, token: token}
}

// ReadLine prints the prompt and blocks for the next input line. It returns
// abort.ErrAborted if cancellation is requested while waiting and io.EOF
// once stdin is exhausted.
func (c *Console) ReadLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				return "", io.EOF
			}
			return line, nil
		case <-time.After(100 * time.Millisecond):
			if c.token.Triggered() {
				fmt.Fprintln(c.out)
				return "", abort.ErrAborted
			}
		}
	}
}

// Pause blocks until the operator presses enter.
func (c *Console) Pause(msg string) error {
	_, err := c.ReadLine(msg + " ")
	return err
}

// AwaitLogin asks the operator to complete a login in the visible browser.
func (c *Console) AwaitLogin(marketplace string) error {
	return c.Pause(fmt.Sprintf("log in to %s in the opened browser window, then press enter", marketplace))
}

// YesNo asks a yes/no question and keeps asking until it gets one.
func (c *Console) YesNo(prompt string) (bool, error) {
	for {
		line, err := c.ReadLine(prompt + " (y/n) ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

// ChooseDescription shows both descriptions and lets the operator pick.
func (c *Console) ChooseDescription(generated, scraped string) (bool, error) {
	fmt.Fprintf(c.out, dedent.Dedent(`
		the marketplace drafted its own description:

		%s

		the original listing says:

		%s

	`), generated, scraped)
	return c.YesNo("keep the drafted description?")
}

// ChooseOption shows a numbered list and returns the index of the choice.
func (c *Console) ChooseOption(prompt string, options []string) (int, error) {
	for i, opt := range options {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, opt)
	}
	for {
		line, err := c.ReadLine(prompt + " ")
		if err != nil {
			return 0, err
		}
		var n int
		if _, err := fmt.Sscanf(line, "%d", &n); err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(c.out, "enter a number between 1 and %d\n", len(options))
	}
}
