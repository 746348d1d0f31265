package hdr

import(
	"errors"
	"fmt"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/patrick-brian-mooney/photo-processing/pkg/fileutil"
)

// ErrNoViableExposures means bracket selection threw away every
// rendering: there is nothing left to fuse.
var ErrNoViableExposures = errors.New("no viable exposures in bracket")

// A Candidate is one EV-shifted rendering of the source raw file.
type Candidate struct {
	EVShift int
	Path    string
}

// A Bracket is the contiguous run of renderings judged worth fusing,
// in ascending EV-shift order except that the anchor (the unshifted
// rendering, when it survived) is moved to the front. The anchor
// matters downstream: alignment and metadata copy both treat the
// first file as the reference frame.
type Bracket struct {
	Candidates []Candidate
}

func (b Bracket)Paths() []string {
	paths := make([]string, 0, len(b.Candidates))
	for _, c := range b.Candidates {
		paths = append(paths, c.Path)
	}
	return paths
}

func (b Bracket)String() string {
	s := "Bracket["
	for i, c := range b.Candidates {
		if i > 0 { s += " " }
		s += fmt.Sprintf("%+d", c.EVShift)
	}
	return s + "]"
}

// Per-direction scan state. Transitions are monotonic; there is no way
// back from foundEnd.
type scanState int

const (
	seekingStart scanState = iota
	foundStart
	foundEnd
)

// RenderFunc materializes one EV-shifted rendering and returns its
// path. AnalyzeFunc produces the smoothed brightness histogram of a
// rendering. Both are swappable so the selector can be exercised
// without dcraw installed.
type RenderFunc func(rawfile string, evShift int, baseISO, baseEV string) (string, error)
type AnalyzeFunc func(path string) (Histogram, error)

// A Selector renders a raw file across the configured shift range and
// trims the results down to the window that actually contains dynamic
// range worth fusing.
type Selector struct {
	Config  Config
	Render  RenderFunc
	Analyze AnalyzeFunc
	Tags    TagAccess
}

func NewSelector(c Config, tags TagAccess) Selector {
	r := NewRenderer(c, tags)
	return Selector{
		Config:  c,
		Render:  r.Render,
		Analyze: SmoothedHistogramOf,
		Tags:    tags,
	}
}

// SelectBracket renders RAWFILE at every shift in the configured
// range, then makes two linear passes over the results: downward from
// the brightest rendering looking for the first without right-edge
// clipping, pruning everything past the first left-edge clip; then
// upward from the darkest survivor with the edge tests swapped.
// Pruned renderings are deleted from disk. At least one rendering
// must survive, or the whole selection fails.
func (s Selector)SelectBracket(rawfile string) (Bracket, error) {
	log.Infof("selecting an exposure bracket for raw file '%s'", rawfile)

	baseISO, baseEV := s.baseExposure(rawfile)

	// One candidate attempted per EV value; a failed rendering is
	// absent, not nil.
	cands := []Candidate{}
	for shift := s.Config.Shifts.Min; shift <= s.Config.Shifts.Max; shift++ {
		path, err := s.Render(rawfile, shift, baseISO, baseEV)
		if err != nil {
			log.Warnf("rendering at %+dEV failed, excluding it: %v", shift, err)
			continue
		}
		cands = append(cands, Candidate{EVShift: shift, Path: path})
	}

	// Downward: brightest to darkest. Nothing brighter than the scan
	// start exists, so the seeking phase just skips.
	cands = s.scan(reversed(cands), Histogram.RightEdgeClipping, Histogram.LeftEdgeClipping, false)

	// Upward: darkest survivor to brightest, edge tests swapped. Here
	// the seeking phase prunes too: a dark rendering still clipping at
	// the left edge holds no shadow detail the scan start lacks.
	cands = s.scan(cands, Histogram.LeftEdgeClipping, Histogram.RightEdgeClipping, true)

	if len(cands) == 0 {
		return Bracket{}, fmt.Errorf("select bracket for '%s': %w", rawfile, ErrNoViableExposures)
	}

	return Bracket{Candidates: anchorFirst(cands)}, nil
}

// scan walks CANDS in order, discarding until the first candidate free
// of startClip, then keeping candidates until one exhibits endClip,
// after which that candidate and all later ones are pruned. Survivors
// come back in ascending EV order regardless of walk direction.
// pruneWhileSeeking controls whether candidates rejected before the
// window opens are deleted or merely skipped.
func (s Selector)scan(cands []Candidate, startClip, endClip func(Histogram, int) bool, pruneWhileSeeking bool) []Candidate {
	width := s.Config.ClippingThreshold
	state := seekingStart
	kept := []Candidate{}

	for _, cand := range cands {
		if state == foundEnd {
			s.discard(cand)
			continue
		}

		h, err := s.Analyze(cand.Path)
		if err != nil {
			log.Warnf("can't analyze '%s', excluding it: %v", cand.Path, err)
			s.discard(cand)
			continue
		}

		if state == seekingStart {
			if startClip(h, width) {
				if pruneWhileSeeking {
					s.discard(cand)
				} else {
					kept = append(kept, cand)
				}
				continue
			}
			state = foundStart
		}

		// A candidate can open the window and close it again in one
		// step, when it clips at both edges.
		if endClip(h, width) {
			state = foundEnd
			s.discard(cand)
			continue
		}
		kept = append(kept, cand)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].EVShift < kept[j].EVShift })
	return kept
}

func (s Selector)discard(cand Candidate) {
	log.Infof("discarding rendering %+dEV ('%s')", cand.EVShift, cand.Path)
	if err := os.Remove(cand.Path); err != nil {
		log.Errorf("can't delete discarded rendering '%s': %v", cand.Path, err)
	}
}

// baseExposure reads the source's ISO and measured EV, preferring the
// JPEG sibling of the raw file since its maker notes are more
// uniformly readable. Missing values come back empty; the renderer
// substitutes fallbacks at tagging time.
func (s Selector)baseExposure(rawfile string) (baseISO, baseEV string) {
	if s.Tags == nil {
		return "", ""
	}

	source := fileutil.FindAltVersion(rawfile, fileutil.JpegExtensions)
	if source == "" {
		source = rawfile
	}

	baseISO, err := s.Tags.ReadFirstTag(source, "ISO", "AutoISO", "BaseISO")
	if err != nil {
		log.Warnf("can't read ISO from '%s': %v", source, err)
	}
	baseEV, err = s.Tags.ReadFirstTag(source, "MeasuredEV", "MeasuredEV2")
	if err != nil {
		log.Warnf("can't read measured EV from '%s': %v", source, err)
	}
	return baseISO, baseEV
}

// anchorFirst pins the unshifted rendering to the front when it
// survived selection. When it didn't, the list is ordered by filename
// and the first entry serves as the anchor: the sort does a fair job
// of putting a low shift up front.
func anchorFirst(cands []Candidate) []Candidate {
	for i, c := range cands {
		if c.EVShift == 0 {
			reordered := append([]Candidate{c}, cands[:i]...)
			return append(reordered, cands[i+1:]...)
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].Path < cands[j].Path })
	return cands
}

func reversed(cands []Candidate) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for i := len(cands) - 1; i >= 0; i-- {
		out = append(out, cands[i])
	}
	return out
}
