// Command create-hdr-script writes (but does not run) an HDR fusion
// pipeline script.
//
// With -first, the named file plus its next -n sequential JPEG
// neighbors in the same directory become the inputs. Otherwise the
// positional arguments are the input list, in order; the first one is
// the anchor.
package main

import(
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/patrick-brian-mooney/photo-processing/pkg/fileutil"
	"github.com/patrick-brian-mooney/photo-processing/pkg/hdr"
)

var(
	fConfigFile      string
	fFirstFile       string
	fNumFiles        int
	fMetadataSource  string
	fDeleteOriginals bool
	fNoAlign         bool
)

func init() {
	flag.StringVar(&fConfigFile, "config", "", "YAML config file")
	flag.StringVar(&fFirstFile, "first", "", "first file of a sequential JPEG bracket")
	flag.IntVar(&fNumFiles, "n", 5, "how many sequential files to take, starting at -first")
	flag.StringVar(&fMetadataSource, "meta", "", "file whose tags get copied onto the final JPEG")
	flag.BoolVar(&fDeleteOriginals, "delete-originals", false, "delete the inputs after fusing instead of archiving them")
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

	var inputs []string
	var err error
	switch {
	case fFirstFile != "":
		inputs, err = sequentialInputs(fFirstFile, fNumFiles)
	case flag.NArg() > 0:
		inputs = flag.Args()
	default:
		err = fmt.Errorf("specify input files, or -first FILE")
	}
	if err != nil {
		log.Fatal(err)
	}

	script, err := hdr.NewSynthesizer(c).CreateScript(inputs, hdr.ScriptOptions{
		MetadataSource:  fMetadataSource,
		DeleteOriginals: fDeleteOriginals,
		SuppressAlign:   fNoAlign,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(script)
}

// sequentialInputs collects FIRST plus the next N-1 JPEGs that follow
// it, in sorted order, in its directory.
func sequentialInputs(first string, n int) ([]string, error) {
	dir := filepath.Dir(first)

	files := []string{}
	for _, ext := range fileutil.JpegExtensions {
		matches, err := filepath.Glob(filepath.Join(dir, "*."+ext))
		if err != nil {
			return nil, fmt.Errorf("glob '%s': %v", dir, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	for i, f := range files {
		if filepath.Base(f) == filepath.Base(first) {
			end := i + n
			if end > len(files) {
				end = len(files)
			}
			return files[i:end], nil
		}
	}
	return nil, fmt.Errorf("'%s' not found among the JPEGs in '%s'", first, dir)
}
