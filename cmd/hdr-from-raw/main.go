// Command hdr-from-raw takes raw image files and creates a tonemapped
// HDR from each one. Requires dcraw, exiftool, and the panotools
// suite (align_image_stack, enfuse) plus ImageMagick's convert.
//
// Usage:
//
//	hdr-from-raw [flags] FILE [FILE2] [FILE3] [...]
//
// Each file is processed independently: a raw file that yields no
// viable exposures is reported and skipped, and the batch moves on.
package main

import(
	"flag"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/patrick-brian-mooney/photo-processing/pkg/fileutil"
	"github.com/patrick-brian-mooney/photo-processing/pkg/hdr"
	"github.com/patrick-brian-mooney/photo-processing/pkg/metadata"
)

var(
	fConfigFile string
	fThreshold  int
	fShiftMin   int
	fShiftMax   int
	fNoDarkness bool
)

func init() {
	flag.StringVar(&fConfigFile, "config", "", "YAML config file")
	flag.IntVar(&fThreshold, "threshold", 0, "clipping threshold width in histogram buckets (0 = config default)")
	flag.IntVar(&fShiftMin, "shiftmin", 0, "lowest EV shift to render (0,0 = config default)")
	flag.IntVar(&fShiftMax, "shiftmax", 0, "highest EV shift to render (0,0 = config default)")
	flag.BoolVar(&fNoDarkness, "nodark", false, "skip darkness-level correction (e.g. for scanned negatives)")
	flag.Parse()

	log.SetOutput(os.Stdout)
}

func main() {
	if flag.NArg() == 0 {
		log.Fatal("no raw files given; nothing to do")
	}

	c, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := c.DiscoverTools(); err != nil {
		log.Fatal(err)
	}

	tags, err := metadata.New(c.Tools.Exiftool)
	if err != nil {
		log.Fatal(err)
	}
	defer tags.Close()

	failures := 0
	for _, rawfile := range flag.Args() {
		if rawfile == "" {
			continue
		}
		log.Infof("Processing %s ...", rawfile)

		mapper := fileutil.NewFilenameMapper()
		if err := mapper.ReadMappings(filepath.Join(filepath.Dir(rawfile), "file_names.csv")); err != nil {
			log.Warnf("filename mappings unreadable, using names as given: %v", err)
		}

		if err := hdr.TonemapFromRaw(c, tags, mapper, rawfile); err != nil {
			// Scoped per input file: the rest of the batch still runs.
			log.Errorf("processing '%s' failed: %v", rawfile, err)
			failures++
		}
	}

	if failures > 0 {
		log.Errorf("%d of %d raw file(s) failed", failures, flag.NArg())
		os.Exit(1)
	}
}

func loadConfig() (hdr.Config, error) {
	c := hdr.NewConfig()
	if fConfigFile != "" {
		loaded, err := hdr.LoadConfig(fConfigFile)
		if err != nil {
			return c, err
		}
		c = loaded
	}

	// Command line overrides, where given
	if fThreshold > 0 { c.ClippingThreshold = fThreshold }
	if fShiftMin != 0 || fShiftMax != 0 { c.Shifts = hdr.ShiftRange{Min: fShiftMin, Max: fShiftMax} }
	if fNoDarkness { c.AvoidDarknessAdjustment = true }

	return c, c.FinalizeConfig()
}
