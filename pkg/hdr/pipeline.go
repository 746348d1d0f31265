// Package hdr selects the exposure bracket worth fusing out of a raw
// image file and synthesizes the shell pipeline that merges it into a
// tonemapped HDR. The image math itself (decode, align, fuse, convert)
// is delegated to external programs; this package decides which
// renderings to keep and generates deterministic scripts that drive
// those programs.
package hdr

import(
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/patrick-brian-mooney/photo-processing/pkg/fileutil"
)

// CreateHDRScript renders RAWFILE across the shift range, trims the
// bracket, and writes the pipeline script that fuses the survivors.
// The raw file itself serves as the metadata source; when a filename
// mapping table is supplied, the source name is resolved through it in
// case the file was renamed since the mapping was recorded. Returns
// the script's absolute path.
func CreateHDRScript(c Config, tags TagAccess, mapper *fileutil.FilenameMapper, rawfile string) (string, error) {
	log.Infof("creating an HDR tonemapping script for raw file '%s'", rawfile)

	bracket, err := NewSelector(c, tags).SelectBracket(rawfile)
	if err != nil {
		return "", err
	}
	log.Infof("selected %s for '%s'", bracket, rawfile)

	metaSource := filepath.Base(rawfile)
	if mapper != nil {
		metaSource = mapper.Current(metaSource)
	}

	return NewSynthesizer(c).CreateScript(bracket.Paths(), ScriptOptions{
		MetadataSource:  metaSource,
		DeleteOriginals: true,
		SuppressAlign:   true,  // the renderings all come from one raw frame
	})
}

// TonemapFromRaw writes the HDR-creation script for RAWFILE, then runs
// it.
func TonemapFromRaw(c Config, tags TagAccess, mapper *fileutil.FilenameMapper, rawfile string) error {
	script, err := CreateHDRScript(c, tags, mapper, rawfile)
	if err != nil {
		return err
	}
	return NewRunner(c).RunScript(script)
}
