// Package metadata wraps exiftool as the photo pipeline's tag
// read/write capability.
package metadata

import(
	"fmt"
	"os/exec"
	"strconv"

	exiftool "github.com/barasher/go-exiftool"
)

// A Tool is a stayopen exiftool session plus the binary's location,
// for the couple of operations (tag copying, numeric writes) that the
// session API doesn't express.
type Tool struct {
	et     *exiftool.Exiftool
	binary string
}

// New starts an exiftool session. BINARY may be empty, in which case
// the program is resolved from $PATH.
func New(binary string) (*Tool, error) {
	if binary == "" {
		loc, err := exec.LookPath("exiftool")
		if err != nil {
			return nil, fmt.Errorf("exiftool not found: %v", err)
		}
		binary = loc
	}

	et, err := exiftool.NewExiftool(exiftool.SetExiftoolBinaryPath(binary))
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %v", err)
	}

	return &Tool{et: et, binary: binary}, nil
}

func (t *Tool)Close() error {
	return t.et.Close()
}

// ReadFirstTag returns the value of the first tag in TAGS that PATH
// actually carries. A file that has none of them yields an empty
// string, not an error; errors mean the file couldn't be read at all.
func (t *Tool)ReadFirstTag(path string, tags ...string) (string, error) {
	fms := t.et.ExtractMetadata(path)
	if len(fms) == 0 {
		return "", fmt.Errorf("extract '%s': no result", path)
	}
	if fms[0].Err != nil {
		return "", fmt.Errorf("extract '%s': %v", path, fms[0].Err)
	}

	for _, tag := range tags {
		if v, err := fms[0].GetString(tag); err == nil {
			return v, nil
		}
	}
	return "", nil
}

// CopyTags copies every tag from SRC onto DST, overwriting in place.
func (t *Tool)CopyTags(src, dst string) error {
	out, err := exec.Command(t.binary, "-overwrite_original", "-tagsfromfile", src, dst).CombinedOutput()
	if err != nil {
		return fmt.Errorf("copy tags '%s' -> '%s': %v (%s)", src, dst, err, out)
	}
	return nil
}

// SetTags writes the given tag values onto PATH, overwriting in place.
func (t *Tool)SetTags(path string, tags map[string]string) error {
	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	for k, v := range tags {
		fm.SetString(k, v)
	}

	fms := []exiftool.FileMetadata{fm}
	t.et.WriteMetadata(fms)
	if fms[0].Err != nil {
		return fmt.Errorf("write tags on '%s': %v", path, fms[0].Err)
	}
	return nil
}

// SetOrientation forces the numeric Orientation tag. Needed after the
// convert stage, whose output has the rotation baked into the pixels.
func (t *Tool)SetOrientation(path string, orientation int) error {
	out, err := exec.Command(t.binary, "-overwrite_original", "-n",
		"-Orientation="+strconv.Itoa(orientation), path).CombinedOutput()
	if err != nil {
		return fmt.Errorf("set orientation on '%s': %v (%s)", path, err, out)
	}
	return nil
}
