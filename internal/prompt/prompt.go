// Package prompt asks the user for input during a run. The batch runner and
// the output writer depend on Prompter so tests can script the answers.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter asks a question and returns the answer without its line terminator.
// An empty answer is valid and means the user pressed enter.
//
//go:generate mockgen -package mockprompt -source=prompt.go -destination=mock/mockprompt.go *
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Terminal reads answers line by line from in and writes questions to out.
// A single reader goroutine owns in; a line typed after a cancelled Ask is
// handed to the next Ask.
type Terminal struct {
	in    *bufio.Reader
	out   io.Writer
	once  sync.Once
	lines chan answer
}

// NewTerminal returns a Terminal over the given streams, typically os.Stdin
// and os.Stdout.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:    bufio.NewReader(in),
		out:   out,
		lines: make(chan answer),
	}
}

type answer struct {
	line string
	err  error
}

// read feeds lines until in is exhausted, then closes the channel.
func (t *Terminal) read() {
	defer close(t.lines)

	for {
		line, err := t.in.ReadString('\n')
		if line != "" {
			t.lines <- answer{line: line}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.lines <- answer{err: err}
			}

			return
		}
	}
}

// Ask prints question and waits for one line of input. End of input counts as
// an empty answer. A cancelled ctx abandons the wait.
func (t *Terminal) Ask(ctx context.Context, question string) (string, error) {
	if _, err := fmt.Fprint(t.out, question); err != nil {
		return "", fmt.Errorf("could not write prompt: %w", err)
	}
	t.once.Do(func() { go t.read() })

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("prompt cancelled: %w", ctx.Err())
	case a, ok := <-t.lines:
		if !ok {
			return "", nil
		}
		if a.err != nil {
			return "", fmt.Errorf("could not read answer: %w", a.err)
		}

		return strings.TrimRight(a.line, "\r\n"), nil
	}
}

var _ Prompter = (*Terminal)(nil)
