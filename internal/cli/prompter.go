package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// Prompter asks the user for optional notes and confirmations.
type Prompter struct {
	writer io.Writer
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewPrompter creates a prompter over reader and writer.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(reader), writer: writer}
}

// readLine reads one line, returning early if ctx is cancelled. A read in
// flight keeps the reader locked until it completes.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		value, err := p.reader.ReadString('\n')
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil && !(errors.Is(res.err, io.EOF) && res.value != "") {
			return "", res.err
		}
		return strings.TrimSpace(res.value), nil
	}
}

// Ask prints label and returns the trimmed answer, which may be empty.
func (p *Prompter) Ask(ctx context.Context, label string) (string, error) {
	if _, err := fmt.Fprint(p.writer, FormatPrompt(label)); err != nil {
		return "", err
	}
	answer, err := p.readLine(ctx)
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return answer, err
}

// Confirm asks a yes/no question. Anything but an explicit yes is a no.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	answer, err := p.Ask(ctx, question+" [o/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "o", "oui", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
