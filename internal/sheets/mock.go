package sheets

import (
	"context"
	"sync"
)

// MockWriter is a ReportWriter that records its calls.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, report Report) (string, error)
	Reports        []Report
	SpreadsheetID  string
	WriteCallCount int
	mu             sync.Mutex
}

// NewMockWriter creates a mock that reports the given spreadsheet id.
func NewMockWriter(spreadsheetID string) *MockWriter {
	return &MockWriter{SpreadsheetID: spreadsheetID}
}

// Write implements ReportWriter.
func (m *MockWriter) Write(ctx context.Context, report Report) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.Reports = append(m.Reports, report)

	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, report)
	}
	return m.SpreadsheetID, nil
}

// LastReport returns the most recent report written.
func (m *MockWriter) LastReport() (Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Reports) == 0 {
		return Report{}, false
	}
	return m.Reports[len(m.Reports)-1], true
}

// SetWriteError makes every following Write fail with err.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(context.Context, Report) (string, error) {
		return "", err
	}
}
