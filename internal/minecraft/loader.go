package minecraft

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Loader is a mod loader a build can target.
type Loader int

const (
	Fabric Loader = iota + 1
	Forge
	Quilt
)

func (l Loader) String() string {
	switch l {
	case Fabric:
		return "fabric"
	case Forge:
		return "forge"
	case Quilt:
		return "quilt"
	default:
		return "unknown"
	}
}

// ParseLoader resolves a provider loader string, case-insensitively.
// Loaders outside Fabric, Forge and Quilt are not resolvable.
func ParseLoader(s string) (Loader, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fabric":
		return Fabric, true
	case "forge":
		return Forge, true
	case "quilt":
		return Quilt, true
	}
	return 0, false
}

func (l Loader) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Loader) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseLoader(s)
	if !ok {
		return fmt.Errorf("unknown loader %q", s)
	}
	*l = parsed
	return nil
}
