package archive

import (
	"archive/zip"
	"encoding/json"
	"io"

	"github.com/pelletier/go-toml/v2"
)

const (
	fabricManifest = "fabric.mod.json"
	quiltManifest  = "quilt.mod.json"
	forgeManifest  = "META-INF/mods.toml"
)

// detectNamespace reads the mod id from the first loader manifest that
// yields one: Fabric, then Quilt, then Forge. Unparsable manifests are skipped.
func detectNamespace(zr *zip.Reader) (string, bool) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	if f, ok := files[fabricManifest]; ok {
		var m struct {
			ID string `json:"id"`
		}
		if readJSON(f, &m) == nil && m.ID != "" {
			return m.ID, true
		}
	}

	if f, ok := files[quiltManifest]; ok {
		var m struct {
			QuiltLoader struct {
				ID string `json:"id"`
			} `json:"quilt_loader"`
		}
		if readJSON(f, &m) == nil && m.QuiltLoader.ID != "" {
			return m.QuiltLoader.ID, true
		}
	}

	if f, ok := files[forgeManifest]; ok {
		var m struct {
			Mods []struct {
				ModID string `toml:"modId"`
			} `toml:"mods"`
		}
		if data, err := readAll(f); err == nil && toml.Unmarshal(data, &m) == nil {
			if len(m.Mods) > 0 && m.Mods[0].ModID != "" {
				return m.Mods[0].ModID, true
			}
		}
	}

	return "", false
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func readJSON(f *zip.File, v any) error {
	data, err := readAll(f)
	if err != nil {
		return err
	}
	return json.Unmarshal(trimBOM(data), v)
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
