package hdr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testSynthesizer() Synthesizer {
	return NewSynthesizer(NewConfig())
}

func TestCreateScriptIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.jpg"),
	}
	opts := ScriptOptions{MetadataSource: "a.cr2", DeleteOriginals: true}

	s := testSynthesizer()
	path1, err := s.CreateScript(files, opts)
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}
	text1, err := os.ReadFile(path1)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}

	path2, err := s.CreateScript(files, opts)
	if err != nil {
		t.Fatalf("CreateScript again: %v", err)
	}
	text2, err := os.ReadFile(path2)
	if err != nil {
		t.Fatalf("read script again: %v", err)
	}

	if path1 != path2 {
		t.Errorf("script path changed between runs: %s vs %s", path1, path2)
	}
	if string(text1) != string(text2) {
		t.Error("regenerating with identical arguments changed the script text")
	}
}

func TestCreateScriptDeleteOriginals(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "c.jpg"),
	}

	path, err := testSynthesizer().CreateScript(files, ScriptOptions{DeleteOriginals: true})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}

	text := readScript(t, path)
	if !strings.Contains(text, "\nrm a.jpg b.jpg c.jpg") {
		t.Errorf("final stage should remove exactly the three inputs:\n%s", text)
	}
	if strings.Contains(text, "mv a.jpg") {
		t.Error("delete-originals script should not archive the inputs")
	}
	if filepath.Base(path) != "a_HDR.SH" {
		t.Errorf("script name %q should derive from the first input", filepath.Base(path))
	}
	if !strings.Contains(text, "a_HDR.TIFF") {
		t.Error("output basename should derive from the first input")
	}
}

func TestCreateScriptArchivesByDefault(t *testing.T) {
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.jpg")}

	path, err := testSynthesizer().CreateScript(files, ScriptOptions{})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}

	text := readScript(t, path)
	if !strings.Contains(text, "mv a.jpg b.jpg HDR_components/") {
		t.Errorf("default script should archive the inputs:\n%s", text)
	}
}

func TestCreateScriptQuotesAwkwardFilenames(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "my photo.jpg"),
		filepath.Join(dir, "b;rm -rf.jpg"),
	}

	path, err := testSynthesizer().CreateScript(files, ScriptOptions{DeleteOriginals: true})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}

	text := readScript(t, path)
	if !strings.Contains(text, "'my photo.jpg'") {
		t.Errorf("filename with a space must be quoted:\n%s", text)
	}
	if !strings.Contains(text, "'b;rm -rf.jpg'") {
		t.Errorf("filename with shell metacharacters must be quoted:\n%s", text)
	}
}

func TestCreateScriptStripsRenderingPrefix(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "HDR_AIS_shot+0.tif"),
		filepath.Join(dir, "HDR_AIS_shot+1.tif"),
	}

	path, err := testSynthesizer().CreateScript(files, ScriptOptions{SuppressAlign: true})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}

	if filepath.Base(path) != "shot+0_HDR.SH" {
		t.Errorf("script name %q should strip the rendering-stage prefix", filepath.Base(path))
	}
}

func TestCreateScriptAlignStage(t *testing.T) {
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.jpg")}
	s := testSynthesizer()

	path, err := s.CreateScript(files, ScriptOptions{})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}
	if !strings.Contains(readScript(t, path), "align_image_stack") {
		t.Error("aligning script should invoke the aligner")
	}

	path, err = s.CreateScript(files, ScriptOptions{SuppressAlign: true})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}
	if strings.Contains(readScript(t, path), "align_image_stack") {
		t.Error("suppress-align script should not invoke the aligner")
	}
}

func TestCreateScriptMetadataStage(t *testing.T) {
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.jpg")}

	path, err := testSynthesizer().CreateScript(files, ScriptOptions{MetadataSource: "a.cr2"})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}

	text := readScript(t, path)
	for _, want := range []string{"-tagsfromfile a.cr2 a_HDR.JPG", "-Orientation=1", "rm *_original"} {
		if !strings.Contains(text, want) {
			t.Errorf("metadata stage missing %q:\n%s", want, text)
		}
	}
}

func TestCreateScriptIsExecutable(t *testing.T) {
	dir := t.TempDir()
	path, err := testSynthesizer().CreateScript([]string{filepath.Join(dir, "a.jpg")}, ScriptOptions{})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode()&0o111 == 0 {
		t.Errorf("script mode %v lacks execute permission", info.Mode())
	}
}

func TestCreateScriptRestoresWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	path, err := testSynthesizer().CreateScript([]string{filepath.Join(dir, "a.jpg")}, ScriptOptions{})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}

	text := readScript(t, path)
	if !strings.Contains(text, "OLDDIR=$(pwd)") || !strings.HasSuffix(text, "cd \"$OLDDIR\"\n") {
		t.Errorf("script must save and restore the working directory:\n%s", text)
	}
}

func TestCreateScriptEmptyInputIsAnError(t *testing.T) {
	if _, err := testSynthesizer().CreateScript(nil, ScriptOptions{}); err == nil {
		t.Error("an empty input list should fail, not write a script")
	}
}

func TestCreateScriptArchivesOldScript(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "HDR_0001.SH")
	if err := os.WriteFile(old, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write old script: %v", err)
	}

	_, err := testSynthesizer().CreateScript(
		[]string{filepath.Join(dir, "a.jpg")},
		ScriptOptions{OldScriptToArchive: old})
	if err != nil {
		t.Fatalf("CreateScript: %v", err)
	}

	if _, err := os.Stat(old); err == nil {
		t.Error("old script should have been moved aside")
	}
	if _, err := os.Stat(filepath.Join(dir, "old_scripts", "HDR_0001.SH")); err != nil {
		t.Errorf("old script not in the archive: %v", err)
	}
}

func TestCreateScriptHousekeepingFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()

	// Neither of these exists; both cleanups fail, neither aborts.
	path, err := testSynthesizer().CreateScript(
		[]string{filepath.Join(dir, "a.jpg")},
		ScriptOptions{
			OldScriptToArchive: filepath.Join(dir, "not-there-1.SH"),
			OldScriptToDelete:  filepath.Join(dir, "not-there-2.SH"),
		})
	if err != nil {
		t.Fatalf("housekeeping failure escalated: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("script should still have been written: %v", err)
	}
}

func readScript(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read '%s': %v", path, err)
	}
	return string(b)
}
