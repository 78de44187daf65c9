// Package memory is an in-process ledger mirror used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

var _ ports.Mirror = (*Mirror)(nil)

type Mirror struct {
	mu   sync.Mutex
	rows [][]any
	// fail, when set, is returned by the next write.
	fail error
}

func New() *Mirror {
	return &Mirror{rows: [][]any{ports.Header}}
}

// AppendPosting stores the rendered row and returns a synthetic A1 reference.
func (m *Mirror) AppendPosting(_ context.Context, p core.Posting) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return "", err
	}
	m.rows = append(m.rows, ports.Row(p))
	n := len(m.rows)
	return fmt.Sprintf("mem!A%d:G%d", n, n), nil
}

// RemovePosting deletes every row carrying the posting id.
func (m *Mirror) RemovePosting(_ context.Context, p core.Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	kept := m.rows[:1]
	for _, row := range m.rows[1:] {
		if id, err := ports.PostingIDOf(row); err == nil && id == p.ID {
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return nil
}

// FailNext makes the next write return err.
func (m *Mirror) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *Mirror) takeFailure() error {
	err := m.fail
	m.fail = nil
	return err
}

// Postings parses the mirrored rows back, header excluded.
func (m *Mirror) Postings() []core.Posting {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Posting, 0, len(m.rows)-1)
	for _, row := range m.rows[1:] {
		p, err := ports.ParseRow(row)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}
