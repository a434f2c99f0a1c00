// Package artifact names and finalises the WAV files a capture run leaves
// behind: Degraded_<N>.wav and Degraded_<N>_aligned.wav, renamed to embed
// the score once one is available.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/himanishpuri/AutoPESQ/pkg/utils"
)

const (
	prefix     = "Degraded_"
	alignedTag = "_aligned"
	ext        = ".wav"

	// maxSkips bounds how many already-taken numbers Reserve steps over.
	maxSkips = 10000
)

// Set is the group of paths belonging to capture number N.
type Set struct {
	Dir string
	N   int
}

func (s Set) Degraded() string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s%d%s", prefix, s.N, ext))
}

func (s Set) Aligned() string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s%d%s%s", prefix, s.N, alignedTag, ext))
}

func (s Set) ScoredDegraded(score float64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s%d_PESQ_%.3f%s", prefix, s.N, score, ext))
}

func (s Set) ScoredAligned(score float64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s%d_PESQ_%.3f%s%s", prefix, s.N, score, alignedTag, ext))
}

// taken reports whether any file for N already exists in Dir.
func (s Set) taken() (bool, error) {
	if utils.FileExists(s.Degraded()) || utils.FileExists(s.Aligned()) {
		return true, nil
	}
	matches, err := filepath.Glob(filepath.Join(s.Dir, fmt.Sprintf("%s%d_PESQ_*%s", prefix, s.N, ext)))
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// Finalize renames whichever of the two artifacts exist so that their names
// carry score, and returns the new paths. A missing file yields "".
func (s Set) Finalize(score float64) (degraded, aligned string, err error) {
	if utils.FileExists(s.Degraded()) {
		degraded = s.ScoredDegraded(score)
		if err := os.Rename(s.Degraded(), degraded); err != nil {
			return "", "", fmt.Errorf("renaming %s: %w", s.Degraded(), err)
		}
	}
	if utils.FileExists(s.Aligned()) {
		aligned = s.ScoredAligned(score)
		if err := os.Rename(s.Aligned(), aligned); err != nil {
			return degraded, "", fmt.Errorf("renaming %s: %w", s.Aligned(), err)
		}
	}
	return degraded, aligned, nil
}

// Namer hands out artifact sets in an output directory.
type Namer struct {
	Dir string
	Seq Sequence
}

func NewNamer(dir string, seq Sequence) *Namer {
	if seq == nil {
		seq = &DirSequence{Dir: dir}
	}
	return &Namer{Dir: dir, Seq: seq}
}

// Reserve draws numbers from the sequence until it finds one with no files
// on disk, so a counter that lags behind the directory never overwrites an
// earlier capture.
func (n *Namer) Reserve() (Set, error) {
	if err := utils.MakeDir(n.Dir); err != nil {
		return Set{}, err
	}
	for _i := 0; _i < maxSkips; _i++ {
		next, err := n.Seq.Next()
		if err != nil {
			return Set{}, fmt.Errorf("next artifact number: %w", err)
		}
		set := Set{Dir: n.Dir, N: next}
		taken, err := set.taken()
		if err != nil {
			return Set{}, err
		}
		if !taken {
			return set, nil
		}
	}
	return Set{}, fmt.Errorf("no free artifact number in %s after %d attempts", n.Dir, maxSkips)
}
