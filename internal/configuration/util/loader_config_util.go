package util

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\${([^}]+)}`)

// LoadAndExpandYaml reads {baseDir}/{filename}.yml with every ${VAR} expanded.
func LoadAndExpandYaml(baseDir, filename string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(baseDir, filename+".yml"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s.yml not found", filename)
	}
	if err != nil {
		return "", fmt.Errorf("read %s.yml: %w", filename, err)
	}

	expanded, err := ExpandEnvStrict(string(raw))
	if err != nil {
		return "", fmt.Errorf("%s.yml: %w", filename, err)
	}
	return expanded, nil
}

// ExpandEnvStrict expands ${VAR} references. Unset variables are an error,
// all of them named at once, instead of silently becoming empty strings.
func ExpandEnvStrict(s string) (string, error) {
	var missing []string
	for _, m := range envVarPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}

	switch len(missing) {
	case 0:
		return os.Expand(s, os.Getenv), nil
	case 1:
		return "", fmt.Errorf("environment variable %s is not set", missing[0])
	default:
		return "", fmt.Errorf("environment variables %s are not set", strings.Join(missing, ", "))
	}
}

// DecodeYamlInto decodes an expanded document over out. Keys absent from the
// document keep their current values, which is what lets a profile overlay
// touch only what it names. Unknown keys are rejected.
func DecodeYamlInto(content string, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}
