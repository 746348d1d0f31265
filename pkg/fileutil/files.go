// Package fileutil holds the photo-file helpers shared by the
// pipeline tools: known extension families, sibling-file lookup, and
// capture-time-based naming.
package fileutil

import(
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

var(
	RawExtensions  = []string{"CR2", "cr2", "DNG", "dng", "RAF", "raf", "DCR", "dcr", "NEF", "nef"}
	JpegExtensions = []string{"jpg", "JPG", "jpeg", "JPEG", "jpe", "JPE"}
	JSONExtensions = []string{"json", "JSON"}
)

// FindAltVersion looks for an alternate version of ORIGNAME (e.g. the
// JPEG sibling of a raw file): same stem, one of EXTENSIONS. The
// extensions are tried in order and the first hit wins; no attempt is
// made to pick a "best" version beyond that ordering. Empty string
// when there is none.
func FindAltVersion(origName string, extensions []string) string {
	stem := strings.TrimSuffix(origName, filepath.Ext(origName))
	for _, ext := range extensions {
		alt := stem + "." + ext
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

// FindUniqueName returns SUGGESTED if nothing by that name exists, or
// else the first "stem_N.ext" variant that doesn't.
func FindUniqueName(suggested string) string {
	if _, err := os.Stat(suggested); err != nil {
		return suggested
	}

	stem := strings.TrimSuffix(suggested, filepath.Ext(suggested))
	ext := filepath.Ext(suggested)
	for index := 1; ; index++ {
		name := fmt.Sprintf("%s_%d%s", stem, index, ext)
		if _, err := os.Stat(name); err != nil {
			return name
		}
	}
}

// ListRaws returns every known-raw-format file in DIR, sorted.
func ListRaws(dir string) ([]string, error) {
	seen := map[string]bool{}
	for _, ext := range RawExtensions {
		matches, err := filepath.Glob(filepath.Join(dir, "*."+ext))
		if err != nil {
			return nil, fmt.Errorf("glob raws in '%s': %v", dir, err)
		}
		for _, m := range matches {
			seen[m] = true
		}
	}

	raws := make([]string, 0, len(seen))
	for r := range seen {
		raws = append(raws, r)
	}
	sort.Strings(raws)
	return raws, nil
}

// NameFromDate builds a capture-timestamp filename for a photo:
// "2018-12-17_15_01_53.jpg". The date comes from EXIF when the file
// has it, from digits already in the filename when it doesn't, and
// from the file's mtime as a last resort.
func NameFromDate(path string) (string, error) {
	digits := exifDateDigits(path)
	if len(digits) < 8 {
		// Filename gibberish, not a meaningful date; fall back to
		// the file's modification time.
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat '%s': %v", path, err)
		}
		digits = digitsOf(info.ModTime().Format(time.RFC3339))
	}
	for len(digits) < 14 {
		digits += " "
	}

	return fmt.Sprintf("%s-%s-%s_%s_%s_%s%s",
		digits[0:4], digits[4:6], digits[6:8],
		digits[8:10], digits[10:12], digits[12:14],
		strings.ToLower(filepath.Ext(path))), nil
}

// exifDateDigits pulls the capture datetime out of the file's EXIF
// block, preferring DateTimeOriginal, and returns just its digits.
// When there's no usable EXIF, the digits of the filename stand in:
// not every image-generating device writes EXIF in all circumstances.
func exifDateDigits(path string) string {
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if meta, err := exif.Decode(f); err == nil {
			for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
				if tag, err := meta.Get(field); err == nil {
					if s, err := tag.StringVal(); err == nil {
						return digitsOf(s)
					}
				}
			}
		}
	}
	return digitsOf(filepath.Base(path))
}

func digitsOf(s string) string {
	out := strings.Builder{}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out.WriteRune(r)
		}
	}
	return out.String()
}
