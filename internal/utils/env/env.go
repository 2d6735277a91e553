package env

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/slok/runq/internal/model"
)

var envKeyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseSpecs parses `KEY=VALUE` specs, a bare `KEY` takes its value from the
// current process environment. Later specs win.
func ParseSpecs(specs []string) (map[string]string, error) {
	vars := make(map[string]string, len(specs))
	for _, spec := range specs {
		key, value, hasValue := strings.Cut(spec, "=")
		if !envKeyRegexp.MatchString(key) {
			return nil, fmt.Errorf("invalid environment variable %q: %w", spec, model.ErrNotValid)
		}

		if !hasValue {
			v, ok := os.LookupEnv(key)
			if !ok {
				return nil, fmt.Errorf("environment variable %q is not set: %w", key, model.ErrNotValid)
			}
			value = v
		}

		vars[key] = value
	}

	return vars, nil
}

// Merge returns a new map with the variables of all the layers, later layers
// win. It returns nil when there are no variables.
func Merge(layers ...map[string]string) map[string]string {
	var merged map[string]string
	for _, l := range layers {
		if len(l) == 0 {
			continue
		}
		if merged == nil {
			merged = make(map[string]string, len(l))
		}
		maps.Copy(merged, l)
	}

	return merged
}

// Environ appends vars to a `KEY=VALUE` environment list sorted by key. Later
// entries win on duplicated keys for os/exec.
func Environ(base []string, vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	environ := slices.Clone(base)
	for _, k := range keys {
		environ = append(environ, k+"="+vars[k])
	}

	return environ
}
