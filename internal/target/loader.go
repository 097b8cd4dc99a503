package target

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatterDelim opens and closes the YAML header of a markdown definition.
const frontmatterDelim = "---"

// ParseFile reads a single target definition. YAML files hold the target
// fields directly; markdown files carry them as frontmatter and use the body
// as the prompt. The name defaults to the file stem.
func ParseFile(path string) (Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Target{}, fmt.Errorf("read %s: %w", path, err)
	}

	var t Target
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &t); err != nil {
			return Target{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".md":
		t, err = parseMarkdown(data)
		if err != nil {
			return Target{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Target{}, fmt.Errorf("unsupported target file %s", path)
	}

	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

func parseMarkdown(data []byte) (Target, error) {
	var t Target
	content := strings.TrimPrefix(string(data), "\ufeff")
	if !strings.HasPrefix(content, frontmatterDelim) {
		t.Prompt = strings.TrimSpace(content)
		return t, nil
	}

	parts := strings.SplitN(content, frontmatterDelim, 3)
	if len(parts) < 3 {
		t.Prompt = strings.TrimSpace(content)
		return t, nil
	}
	if err := yaml.Unmarshal([]byte(parts[1]), &t); err != nil {
		return Target{}, fmt.Errorf("frontmatter: %w", err)
	}
	t.Prompt = strings.TrimSpace(parts[2])
	return t, nil
}

// isDefinition reports whether path names a target definition file.
func isDefinition(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".md":
		return true
	default:
		return false
	}
}

// LoadDir registers every definition found in dir. Files that fail to parse
// are logged and skipped. A missing directory loads nothing.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read targets dir: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !isDefinition(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := r.loadFile(path); err != nil {
			r.logger.Error("load target definition", "path", path, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

func (r *Registry) loadFile(path string) error {
	t, err := ParseFile(path)
	if err != nil {
		return err
	}
	if err := r.Register(t); err != nil {
		return err
	}
	r.logger.Info("loaded target", "target", t.Name, "path", path)
	return nil
}

// SaveFile writes t as YAML into dir, named after the target.
func SaveFile(dir string, t Target) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create targets dir: %w", err)
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal target: %w", err)
	}
	path := filepath.Join(dir, t.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write target: %w", err)
	}
	return path, nil
}
