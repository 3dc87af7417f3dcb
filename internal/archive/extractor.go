package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path"
)

// DefaultLocale is the language file extracted from every archive.
const DefaultLocale = "en_us"

// LanguageMap holds the string entries of one archive's default language file.
type LanguageMap struct {
	Namespace string
	Entries   map[string]string
}

// Extractor reads default-locale language files out of mod archives.
type Extractor struct {
	locale string
}

func NewExtractor() *Extractor {
	return &Extractor{locale: DefaultLocale}
}

// Extract parses the archive at archivePath. A nil map with a nil error means
// the archive carries no recognizable namespace or language file. Once the
// file has been opened it is deleted when Extract returns, whatever the outcome.
func (e *Extractor) Extract(archivePath string) (*LanguageMap, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, newError(KindExtraction, "open "+archivePath, err)
	}
	defer os.Remove(archivePath)
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, newError(KindExtraction, "stat "+archivePath, err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, newError(KindExtraction, "read zip "+archivePath, err)
	}

	namespace, ok := detectNamespace(zr)
	if !ok {
		return nil, nil
	}

	langPath := path.Join("assets", namespace, "lang", e.locale+".json")
	var langFile *zip.File
	for _, zf := range zr.File {
		if zf.Name == langPath {
			langFile = zf
			break
		}
	}
	if langFile == nil {
		return nil, nil
	}

	data, err := readAll(langFile)
	if err != nil {
		return nil, newError(KindExtraction, "read "+langPath, err)
	}
	entries, err := parseLanguageFile(data)
	if err != nil {
		return nil, newError(KindExtraction, "parse "+langPath, err)
	}

	return &LanguageMap{Namespace: namespace, Entries: entries}, nil
}

// parseLanguageFile keeps only string members. Duplicate keys resolve to the
// last occurrence.
func parseLanguageFile(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(trimBOM(data), &raw); err != nil {
		return nil, fmt.Errorf("malformed language file: %w", err)
	}

	entries := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			entries[k] = s
		}
	}
	return entries, nil
}
