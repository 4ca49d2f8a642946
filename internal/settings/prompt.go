package settings

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter asks a human operator a question and returns the typed answer.
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
}

// LinePrompter asks on out and reads one line from in. A pending read is abandoned,
// not interrupted, when ctx ends.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
	mu  sync.Mutex
}

func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

func (p *LinePrompter) Ask(ctx context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintln(p.out, question); err != nil {
		return "", err
	}

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{strings.TrimRight(line, "\r\n"), err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("read answer: %w", res.err)
		}
		return res.line, nil
	}
}

// StaticPrompter answers from a fixed list, in order. Used for unattended runs and tests.
type StaticPrompter struct {
	mu      sync.Mutex
	answers []string
	Asked   []string
}

func NewStaticPrompter(answers ...string) *StaticPrompter {
	return &StaticPrompter{answers: answers}
}

func (p *StaticPrompter) Ask(_ context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Asked = append(p.Asked, question)
	if len(p.answers) == 0 {
		return "", ErrNoAnswer
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}
