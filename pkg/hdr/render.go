package hdr

import(
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TagAccess is the slice of the metadata tool the core needs: read the
// first matching tag from a file, copy every tag between files, and
// write specific tags. pkg/metadata provides the exiftool-backed
// implementation. Orientation fixup isn't here: that happens inside
// the generated script, after the convert stage has run.
type TagAccess interface {
	ReadFirstTag(path string, tags ...string) (string, error)
	CopyTags(src, dst string) error
	SetTags(path string, tags map[string]string) error
}

// A Renderer materializes EV-shifted renderings of a raw file by
// driving the external raw decoder, then stamps each rendering with
// synthetic exposure metadata.
type Renderer struct {
	Config Config
	Tags   TagAccess
}

func NewRenderer(c Config, tags TagAccess) Renderer {
	return Renderer{Config: c, Tags: tags}
}

// ShiftedName returns the filename a rendering of RAWFILE at EVSHIFT
// gets, e.g. "HDR_AIS_2018-12-17_15_01_53_1+2.tif". The prefix matches
// the aligner's intermediate prefix so that pre-aligned renderings are
// picked up by the fusion stage's glob.
func ShiftedName(rawfile string, evShift int) string {
	base := filepath.Base(rawfile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	sign := ""
	if evShift >= 0 { sign = "+" }
	return fmt.Sprintf("HDR_AIS_%s%s%d.tif", stem, sign, evShift)
}

// Render decodes RAWFILE at a brightness multiplier of 2^EVSHIFT and
// writes the result next to it. BASEISO and BASEEV are the source
// image's metadata values, possibly empty; tagging falls back to
// plausible bases rather than failing. Returns the rendered file's
// path. On any failure the half-made output file is removed.
func (r Renderer)Render(rawfile string, evShift int, baseISO, baseEV string) (string, error) {
	outfile := filepath.Join(filepath.Dir(rawfile), ShiftedName(rawfile, evShift))

	log.Infof("creating, tagging, and testing a rendering for EV shift %+d", evShift)

	args := []string{"-T", "-c", "-v", "-w", "-W"}
	if !r.Config.AvoidDarknessAdjustment {
		if _, err := os.Stat(r.Config.DarkframePath); r.Config.DarkframePath != "" && err == nil {
			args = append(args, "-K", r.Config.DarkframePath)
		} else {
			args = append(args, "-k", r.Config.DarknessLevel)
		}
	}
	brightness := math.Pow(2, float64(evShift))
	args = append(args, "-b", strconv.FormatFloat(brightness, 'g', -1, 64), rawfile)

	writer, err := os.Create(outfile)
	if err != nil {
		return "", fmt.Errorf("open+w '%s': %v", outfile, err)
	}

	cmd := exec.Command(r.Config.Tools.Dcraw, args...)
	cmd.Stdout = writer
	runErr := cmd.Run()
	closeErr := writer.Close()

	if runErr != nil {
		os.Remove(outfile)
		return "", fmt.Errorf("decode '%s' at %+dEV: %v", rawfile, evShift, runErr)
	}
	if closeErr != nil {
		os.Remove(outfile)
		return "", fmt.Errorf("write '%s': %v", outfile, closeErr)
	}

	if err := r.tagRendering(rawfile, outfile, evShift, baseISO, baseEV); err != nil {
		os.Remove(outfile)
		return "", err
	}

	return outfile, nil
}

// tagRendering copies all tags from the source raw onto the rendering,
// then overwrites the exposure fields with the shifted values.
func (r Renderer)tagRendering(rawfile, outfile string, evShift int, baseISO, baseEV string) error {
	if r.Tags == nil {
		return nil
	}

	if err := r.Tags.CopyTags(rawfile, outfile); err != nil {
		return fmt.Errorf("copy tags '%s' -> '%s': %v", rawfile, outfile, err)
	}

	iso, ev := shiftedExposure(r.Config, evShift, baseISO, baseEV)

	tags := map[string]string{
		"ISO":         iso,
		"AutoISO":     iso,
		"BaseISO":     iso,
		"MeasuredEV":  ev,
		"MeasuredEV2": ev,
	}
	if err := r.Tags.SetTags(outfile, tags); err != nil {
		return fmt.Errorf("set tags on '%s': %v", outfile, err)
	}

	return nil
}

// shiftedExposure derives the synthetic ISO and EV values for an
// EV-shifted rendering. Unreadable base values are a best-effort
// situation, not an error: substitute the configured fallback bases
// and say so.
func shiftedExposure(c Config, evShift int, baseISO, baseEV string) (iso, ev string) {
	factor := math.Pow(2, float64(evShift))

	isoBase, err := strconv.ParseFloat(strings.TrimSpace(baseISO), 64)
	if err != nil || isoBase <= 0 {
		isoBase = float64(c.FallbackISO)
		log.Warnf("no usable base ISO ('%s'); using fallback ISO %d", baseISO, c.FallbackISO)
	}
	iso = strconv.Itoa(int(math.Round(isoBase * factor)))

	evBase, err := strconv.ParseFloat(strings.TrimSpace(baseEV), 64)
	if err != nil {
		evBase = float64(c.FallbackEV)
		log.Warnf("no usable base EV ('%s'); using fallback EV %d", baseEV, c.FallbackEV)
	}
	ev = strconv.FormatFloat(evBase+float64(evShift), 'g', -1, 64)

	return iso, ev
}
