package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// IndexFile is the on-disk index written by the indexer and read at startup.
const IndexFile = "index.json"

var audioExts = map[string]bool{".mp3": true, ".wav": true, ".ogg": true}

type indexDoc struct {
	Lines []VoiceLine `json:"lines"`
}

// ScanDir walks dir for audio files and derives tags from filenames of the
// form character_tag_nn.ext. Files without a parseable tag are skipped.
func ScanDir(dir string) ([]VoiceLine, error) {
	var lines []VoiceLine
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !audioExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		tag := tagFromFilename(d.Name())
		if tag == "" {
			return nil
		}
		lines = append(lines, VoiceLine{ID: filepath.ToSlash(rel), Tags: []string{tag}})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan voices dir %s: %w", dir, err)
	}
	return lines, nil
}

// tagFromFilename extracts the middle segment of character_tag_nn.ext.
func tagFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[1:len(parts)-1], "_")
}

// LoadIndex reads the index file under dir. Falls back to a directory scan
// when the index is missing.
func LoadIndex(dir string) ([]VoiceLine, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if os.IsNotExist(err) {
		return ScanDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("read voice index: %w", err)
	}
	var doc indexDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode voice index: %w", err)
	}
	return doc.Lines, nil
}

// SaveIndex writes lines as the index file under dir.
func SaveIndex(dir string, lines []VoiceLine) error {
	data, err := json.MarshalIndent(indexDoc{Lines: lines}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, IndexFile), data, 0644)
}
