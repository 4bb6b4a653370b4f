package cli

import (
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Spinner is a loading indicator for API calls. Nested Show calls are
// counted so the spinner stays up until the last call finishes.
type Spinner struct {
	writer      io.Writer
	bar         *progressbar.ProgressBar
	description string
	active      int
	mu          sync.Mutex
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, description string) *Spinner {
	return &Spinner{writer: w, description: description}
}

// Show starts the spinner, or extends it when already shown.
func (s *Spinner) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	if s.active > 1 {
		return
	}
	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.writer),
		progressbar.OptionSetDescription(s.description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	_ = s.bar.RenderBlank()
}

// Hide stops the spinner once every Show has been matched.
func (s *Spinner) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == 0 {
		return
	}
	s.active--
	if s.active > 0 || s.bar == nil {
		return
	}
	if err := s.bar.Finish(); err != nil {
		slog.Debug("Failed to clear spinner", "error", err)
	}
	s.bar = nil
}

// Active reports how many calls are in flight.
func (s *Spinner) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// PollProgress shows payment status checks against the attempt budget.
type PollProgress struct {
	bar *progressbar.ProgressBar
}

// NewPollProgress creates a bar sized to maxAttempts.
func NewPollProgress(w io.Writer, maxAttempts int) *PollProgress {
	return &PollProgress{
		bar: progressbar.NewOptions(maxAttempts,
			progressbar.OptionSetWriter(w),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetDescription("[cyan]Vérification du paiement...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		),
	}
}

// Set moves the bar to attempt n.
func (p *PollProgress) Set(n int) {
	if err := p.bar.Set(n); err != nil {
		slog.Debug("Failed to update poll progress", "error", err)
	}
}

// Done closes the bar.
func (p *PollProgress) Done() {
	if err := p.bar.Exit(); err != nil {
		slog.Debug("Failed to close poll progress", "error", err)
	}
}
