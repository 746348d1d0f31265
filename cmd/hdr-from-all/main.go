// Command hdr-from-all makes one HDR pipeline script out of every JPEG
// in a directory, then runs it. It assumes all the JPEGs there are
// exposures of the same scene and that no other pipeline scripts are
// lying around.
package main

import(
	"flag"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/patrick-brian-mooney/photo-processing/pkg/fileutil"
	"github.com/patrick-brian-mooney/photo-processing/pkg/hdr"
)

var(
	fConfigFile string
	fDir        string
	fNoAlign    bool
)

func init() {
	flag.StringVar(&fConfigFile, "config", "", "YAML config file")
	flag.StringVar(&fDir, "dir", ".", "directory holding the JPEGs to fuse")
	flag.BoolVar(&fNoAlign, "noalign", false, "assume the images are already aligned")
	flag.Parse()

	log.SetOutput(os.Stdout)
}

func main() {
	c := hdr.NewConfig()
	if fConfigFile != "" {
		loaded, err := hdr.LoadConfig(fConfigFile)
		if err != nil {
			log.Fatal(err)
		}
		c = loaded
	}
	if err := c.DiscoverTools(); err != nil {
		log.Fatal(err)
	}

	files := []string{}
	for _, ext := range fileutil.JpegExtensions {
		matches, err := filepath.Glob(filepath.Join(fDir, "*."+ext))
		if err != nil {
			log.Fatalf("glob '%s': %v", fDir, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	if len(files) == 0 {
		log.Fatalf("no JPEG files in '%s'; nothing to fuse", fDir)
	}

	synth := hdr.NewSynthesizer(c)
	if _, err := synth.CreateScript(files, hdr.ScriptOptions{SuppressAlign: fNoAlign}); err != nil {
		log.Fatal(err)
	}

	if err := hdr.NewRunner(c).RunPendingScripts(fDir); err != nil {
		log.Fatal(err)
	}
}
