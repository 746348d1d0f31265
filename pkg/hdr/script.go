package hdr

import(
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
	log "github.com/sirupsen/logrus"
)

// alignedPrefix is the output prefix handed to the aligner; the fusion
// stage globs for it, so renderings that skip alignment carry the same
// prefix in their filenames.
const alignedPrefix = "HDR_AIS"

// ScriptOptions controls what a synthesized pipeline script does
// beyond the fixed align/fuse/convert core.
type ScriptOptions struct {
	// MetadataSource, when set, names a file whose tags are copied
	// onto the final JPEG, after which the orientation tag is forced
	// to 1 (convert already baked the rotation into the pixels).
	MetadataSource string

	// DeleteOriginals removes the input files once fused; otherwise
	// they are moved into the components archive subdirectory.
	DeleteOriginals bool

	// SuppressAlign skips the alignment stage, for inputs that are
	// already aligned.
	SuppressAlign bool

	// Best-effort housekeeping after a successful write: a superseded
	// script to move into the old-scripts archive, or one to delete.
	// Neither failure aborts the synthesis.
	OldScriptToArchive string
	OldScriptToDelete  string
}

// A Synthesizer turns an ordered list of exposure renderings into a
// runnable shell pipeline. The first input is the anchor: it names the
// output and is the alignment reference.
type Synthesizer struct {
	Config Config
}

func NewSynthesizer(c Config) Synthesizer {
	return Synthesizer{Config: c}
}

// OutputBasename derives the merged image's name from the anchor
// input: rendering-stage prefix stripped, "_HDR" suffixed.
func OutputBasename(anchor string) string {
	base := filepath.Base(anchor)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(stem), alignedPrefix+"_"))
	return stem + "_HDR.TIFF"
}

// CreateScript writes the pipeline script next to its inputs, marks it
// executable, and returns its absolute path. The script text is a pure
// function of the inputs and options: regenerating with the same
// arguments yields byte-identical text.
func (s Synthesizer)CreateScript(inputFiles []string, opts ScriptOptions) (string, error) {
	if len(inputFiles) == 0 {
		return "", fmt.Errorf("create script: no input files")
	}

	anchorAbs, err := filepath.Abs(inputFiles[0])
	if err != nil {
		return "", fmt.Errorf("resolve '%s': %v", inputFiles[0], err)
	}
	wdir := filepath.Dir(anchorAbs)

	outputFile := OutputBasename(inputFiles[0])
	outputJPG := strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".JPG"

	names := make([]string, 0, len(inputFiles))
	for _, f := range inputFiles {
		names = append(names, filepath.Base(f))
	}

	text := s.scriptText(outputFile, outputJPG, wdir, names, opts)

	scriptPath := filepath.Join(wdir, strings.TrimSuffix(outputFile, filepath.Ext(outputFile))+".SH")
	if err := os.WriteFile(scriptPath, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write script '%s': %v", scriptPath, err)
	}

	// chmod a+x, preserving the other mode bits.
	if info, err := os.Stat(scriptPath); err != nil {
		return "", fmt.Errorf("stat script '%s': %v", scriptPath, err)
	} else if err := os.Chmod(scriptPath, info.Mode()|0o111); err != nil {
		return "", fmt.Errorf("chmod script '%s': %v", scriptPath, err)
	}

	s.retireOldScript(wdir, opts)

	log.Infof("wrote pipeline script '%s' (%d input files)", scriptPath, len(inputFiles))
	return scriptPath, nil
}

func (s Synthesizer)scriptText(outputFile, outputJPG, wdir string, names []string, opts ScriptOptions) string {
	aligning := "aligning first"
	if opts.SuppressAlign {
		aligning = "assuming pre-aligned images"
	}

	t := strings.Builder{}
	t.WriteString("#!/usr/bin/env bash\n\n")
	fmt.Fprintf(&t, "# %s from %s ... %s, %s\n", outputFile, names[0], names[len(names)-1], aligning)
	t.WriteString("# This script written by photo-processing; see\n")
	t.WriteString("#     https://github.com/patrick-brian-mooney/photo-processing/\n\n")

	t.WriteString("OLDDIR=$(pwd)\n")
	fmt.Fprintf(&t, "cd %s\n", shellquote.Join(wdir))

	if !opts.SuppressAlign {
		fmt.Fprintf(&t, "\n%s -xyzdivv -a %s %s", s.Config.Tools.AlignImageStack, alignedPrefix, shellquote.Join(names...))
	}

	fmt.Fprintf(&t, "\n%s --output=%s %s*tif", s.Config.Tools.Enfuse, shellquote.Join(outputFile), alignedPrefix)
	fmt.Fprintf(&t, "\n%s %s -quality %d %s", s.Config.Tools.Convert, shellquote.Join(outputFile), s.Config.JpegQuality, shellquote.Join(outputJPG))
	fmt.Fprintf(&t, "\nrm %s\n\n", shellquote.Join(outputFile))

	if opts.MetadataSource != "" {
		fmt.Fprintf(&t, "%s -tagsfromfile %s %s\n", s.Config.Tools.Exiftool, shellquote.Join(opts.MetadataSource), shellquote.Join(outputJPG))
		fmt.Fprintf(&t, "%s -n -Orientation=1 %s       # convert's output is already oriented\n", s.Config.Tools.Exiftool, shellquote.Join(outputJPG))
		t.WriteString("rm *_original\n")
	}

	if opts.DeleteOriginals {
		fmt.Fprintf(&t, "\nrm %s", shellquote.Join(names...))
	} else {
		fmt.Fprintf(&t, "\nmv %s %s/", shellquote.Join(names...), s.Config.ComponentsDir)
	}

	t.WriteString("\n\ncd \"$OLDDIR\"\n")
	return t.String()
}

// retireOldScript handles the caller-directed cleanup of a superseded
// script. Failures are logged and swallowed.
func (s Synthesizer)retireOldScript(wdir string, opts ScriptOptions) {
	if opts.OldScriptToArchive != "" {
		archive := filepath.Join(wdir, s.Config.OldScriptsDir)
		if err := os.MkdirAll(archive, 0o755); err != nil {
			log.Errorf("can't create old-script archive '%s': %v", archive, err)
		} else if err := os.Rename(opts.OldScriptToArchive, filepath.Join(archive, filepath.Base(opts.OldScriptToArchive))); err != nil {
			log.Errorf("can't archive old script '%s': %v", opts.OldScriptToArchive, err)
		}
	}
	if opts.OldScriptToDelete != "" {
		if err := os.Remove(opts.OldScriptToDelete); err != nil {
			log.Errorf("can't delete old script '%s': %v", opts.OldScriptToDelete, err)
		}
	}
}
