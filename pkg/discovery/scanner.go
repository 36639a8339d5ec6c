package discovery

import (
	"fmt"

	"github.com/ja7ad/procwatch/pkg/process"
)

// Lister enumerates the pids currently alive.
type Lister func() ([]int, error)

type Scanner struct {
	list Lister
}

func NewScanner(list Lister) *Scanner {
	return &Scanner{list: list}
}

// Scan enumerates live pids and reconciles t with them. A failed
// enumeration leaves t untouched.
func (s *Scanner) Scan(t *process.Table) (added, removed []int, err error) {
	pids, err := s.list()
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: list pids: %w", err)
	}
	added, removed = t.Sync(pids)
	return added, removed, nil
}
