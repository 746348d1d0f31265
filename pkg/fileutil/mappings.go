package fileutil

import(
	"encoding/csv"
	"fmt"
	"os"
	"sort"
)

// A FilenameMapper maintains a table of original → current filenames,
// persisted as a CSV file with a header row. No claim is made to
// preserve intermediate names a file may have had: the point is to be
// able to restore a batch of renamed files to their original names.
// The HDR pipeline reads the table (never writes it) to resolve a
// metadata source's current name after renaming.
type FilenameMapper struct {
	Mapping  map[string]string
	Filename string
}

func NewFilenameMapper() *FilenameMapper {
	return &FilenameMapper{Mapping: map[string]string{}}
}

func (m *FilenameMapper)String() string {
	stored := "not tied to a file"
	if m.Filename != "" {
		stored = fmt.Sprintf("stored in '%s'", m.Filename)
	}
	return fmt.Sprintf("<FilenameMapper mapping %d files (%s)>", len(m.Mapping), stored)
}

// ReadMappings loads a mapping table, ADDING to whatever is already in
// memory: entries read from the file are treated as the latest in a
// series of renames, so an incoming original name that is already
// recorded as someone's current name updates that chain in place. A
// missing file is fine; there's just nothing to read. FILENAME
// becomes the table's backing file either way.
func (m *FilenameMapper)ReadMappings(filename string) error {
	m.Filename = filename

	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open mappings '%s': %v", filename, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("parse mappings '%s': %v", filename, err)
	}

	for i, row := range rows {
		if i == 0 {
			continue  // header row
		}
		if len(row) < 2 {
			return fmt.Errorf("mappings '%s' row %d: want 2 fields, got %d", filename, i+1, len(row))
		}
		m.AddMapping(row[0], row[1])
	}
	return nil
}

// AddMapping records that NEWNAME was once called ORIGNAME. If
// ORIGNAME already appears as the result of an earlier rename, the
// existing chain is updated to point at NEWNAME instead of growing a
// second hop. No renaming happens and nothing is written to disk.
func (m *FilenameMapper)AddMapping(origName, newName string) {
	chained := false
	for orig, current := range m.Mapping {
		if current == origName {
			m.Mapping[orig] = newName
			chained = true
		}
	}
	if !chained {
		m.Mapping[origName] = newName
	}
}

// RenameAndMap renames a file on disk and records the mapping.
func (m *FilenameMapper)RenameAndMap(origName, newName string) error {
	if err := os.Rename(origName, newName); err != nil {
		return fmt.Errorf("rename '%s' -> '%s': %v", origName, newName, err)
	}
	m.AddMapping(origName, newName)
	return nil
}

// Current returns the current name recorded for ORIGNAME, or ORIGNAME
// itself when the table has never seen it.
func (m *FilenameMapper)Current(origName string) string {
	if current, ok := m.Mapping[origName]; ok {
		return current
	}
	return origName
}

// WriteMappings writes the table back to its CSV file, rows sorted by
// original name so the output is stable.
func (m *FilenameMapper)WriteMappings() error {
	if m.Filename == "" {
		return fmt.Errorf("write mappings: no backing file set")
	}

	f, err := os.Create(m.Filename)
	if err != nil {
		return fmt.Errorf("open+w mappings '%s': %v", m.Filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"original name", "new name"}); err != nil {
		return fmt.Errorf("write mappings '%s': %v", m.Filename, err)
	}

	origs := make([]string, 0, len(m.Mapping))
	for orig := range m.Mapping {
		origs = append(origs, orig)
	}
	sort.Strings(origs)

	for _, orig := range origs {
		if err := w.Write([]string{orig, m.Mapping[orig]}); err != nil {
			return fmt.Errorf("write mappings '%s': %v", m.Filename, err)
		}
	}
	w.Flush()
	return w.Error()
}
