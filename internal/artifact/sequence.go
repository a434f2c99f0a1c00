package artifact

import (
	"os"
	"regexp"
	"strconv"
	"sync"
)

// Sequence yields increasing artifact numbers.
type Sequence interface {
	Next() (int, error)
}

// MemorySequence counts from Start+1 in process memory.
type MemorySequence struct {
	mu    sync.Mutex
	Start int
	n     int
}

func (m *MemorySequence) Next() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.n < m.Start {
		m.n = m.Start
	}
	m.n++
	return m.n, nil
}

// Counter is a persistent named counter, such as storage.DBClient.
type Counter interface {
	NextSequence(name string) (int, error)
}

// StoreSequence draws numbers from a persistent counter.
type StoreSequence struct {
	Store Counter
	Name  string
}

func (s StoreSequence) Next() (int, error) {
	name := s.Name
	if name == "" {
		name = "captures"
	}
	return s.Store.NextSequence(name)
}

var artifactName = regexp.MustCompile(`^Degraded_(\d+)(?:_PESQ_(?:-?[0-9.]+|NaN|[+-]Inf))?(?:_aligned)?\.wav$`)

// DirSequence returns one more than the highest number found among the
// artifacts already in Dir. It rescans on every call.
type DirSequence struct {
	Dir string
}

func (d *DirSequence) Next() (int, error) {
	highest, err := HighestInDir(d.Dir)
	if err != nil {
		return 0, err
	}
	return highest + 1, nil
}

// HighestInDir returns the largest N of any Degraded_<N>*.wav in dir, or 0.
// A missing directory counts as empty.
func HighestInDir(dir string) (int, error) {
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := artifactName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}
