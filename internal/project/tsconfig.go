package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrBadExtends indicates an "extends" value that is neither a string nor a list of strings.
	ErrBadExtends = errors.New("extends must be a string or an array of strings")
)

type rawConfig struct {
	Extends         json.RawMessage `json:"extends"`
	CompilerOptions struct {
		Composite *bool `json:"composite"`
	} `json:"compilerOptions"`
	References []struct {
		Path string `json:"path"`
	} `json:"references"`
}

// configMeta is the subset of a tsconfig that shapes the project graph.
type configMeta struct {
	Extends    []string
	Composite  *bool // nil when the file does not set it
	References []string
}

// parseConfig decodes tsconfig text: JSON with comments and trailing commas,
// optionally prefixed by a byte order mark. Blank input is an empty object.
func parseConfig(raw []byte) (configMeta, error) {
	text, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return configMeta{}, fmt.Errorf("decode: %w", err)
	}
	if len(bytes.TrimSpace(text)) == 0 {
		return configMeta{}, nil
	}
	std, err := hujson.Standardize(text)
	if err != nil {
		return configMeta{}, err
	}

	var cfg rawConfig
	if err := json.Unmarshal(std, &cfg); err != nil {
		return configMeta{}, err
	}

	meta := configMeta{Composite: cfg.CompilerOptions.Composite}
	if len(cfg.Extends) > 0 && string(cfg.Extends) != "null" {
		var single string
		if err := json.Unmarshal(cfg.Extends, &single); err == nil {
			meta.Extends = []string{single}
		} else {
			var list []string
			if err := json.Unmarshal(cfg.Extends, &list); err != nil {
				return configMeta{}, ErrBadExtends
			}
			meta.Extends = list
		}
	}
	for _, ref := range cfg.References {
		meta.References = append(meta.References, ref.Path)
	}
	return meta, nil
}

// resolveExtends locates the config named by an "extends" specifier declared
// in a config living in fromDir.
func resolveExtends(fromDir, spec string) (string, bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", false
	}
	if isPathSpecifier(spec) {
		base := spec
		if !filepath.IsAbs(base) {
			base = filepath.Join(fromDir, filepath.FromSlash(spec))
		}
		return firstFile(base, base+".json")
	}

	// bare specifier: walk up through node_modules directories
	dir := fromDir
	for {
		nm := filepath.Join(dir, "node_modules", filepath.FromSlash(spec))
		if p, ok := firstFile(nm, nm+".json", filepath.Join(nm, "tsconfig.json")); ok {
			return p, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// resolveReference locates the config a project reference points at: a
// directory stands for the tsconfig.json inside it.
func resolveReference(fromDir, refPath string) (string, bool) {
	refPath = strings.TrimSpace(refPath)
	if refPath == "" {
		return "", false
	}
	target := refPath
	if !filepath.IsAbs(target) {
		target = filepath.Join(fromDir, filepath.FromSlash(refPath))
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		return firstFile(filepath.Join(target, ConfigFileName))
	}
	return filepath.Clean(target), true
}

func isPathSpecifier(spec string) bool {
	return filepath.IsAbs(spec) ||
		spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") ||
		strings.HasPrefix(spec, ".\\") || strings.HasPrefix(spec, "..\\")
}

func firstFile(candidates ...string) (string, bool) {
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && info.Mode().IsRegular() {
			return filepath.Clean(c), true
		}
	}
	return "", false
}
