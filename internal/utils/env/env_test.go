package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/utils/env"
)

func TestParseSpecs(t *testing.T) {
	t.Setenv("FROM_HOST", "host-value")

	tests := map[string]struct {
		specs  []string
		expEnv map[string]string
		expErr bool
	}{
		"KEY=VALUE should parse": {
			specs:  []string{"FOO=bar"},
			expEnv: map[string]string{"FOO": "bar"},
		},
		"KEY= should parse an empty value": {
			specs:  []string{"FOO="},
			expEnv: map[string]string{"FOO": ""},
		},
		"KEY should inherit from host": {
			specs:  []string{"FROM_HOST"},
			expEnv: map[string]string{"FROM_HOST": "host-value"},
		},
		"Later entries should override earlier ones": {
			specs:  []string{"FOO=one", "FOO=two"},
			expEnv: map[string]string{"FOO": "two"},
		},
		"Missing inherited var should fail": {
			specs:  []string{"DOES_NOT_EXIST_RUNQ"},
			expErr: true,
		},
		"Invalid key should fail": {
			specs:  []string{"1INVALID=value"},
			expErr: true,
		},
		"Empty spec should fail": {
			specs:  []string{""},
			expErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := env.ParseSpecs(tc.specs)

			if tc.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expEnv, got)
		})
	}
}

func TestMerge(t *testing.T) {
	tests := map[string]struct {
		layers []map[string]string
		expEnv map[string]string
	}{
		"No layers should return nil": {
			expEnv: nil,
		},
		"Empty layers should return nil": {
			layers: []map[string]string{nil, {}},
			expEnv: nil,
		},
		"Later layers should win": {
			layers: []map[string]string{
				{"A": "1", "B": "2"},
				{"B": "3", "C": "4"},
				{"C": "5"},
			},
			expEnv: map[string]string{"A": "1", "B": "3", "C": "5"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expEnv, env.Merge(tc.layers...))
		})
	}
}

func TestMergeDoesNotChangeLayers(t *testing.T) {
	base := map[string]string{"A": "1"}
	got := env.Merge(base, map[string]string{"A": "2"})

	assert.Equal(t, map[string]string{"A": "2"}, got)
	assert.Equal(t, map[string]string{"A": "1"}, base)
}

func TestEnviron(t *testing.T) {
	assert := assert.New(t)

	base := []string{"PATH=/bin"}
	got := env.Environ(base, map[string]string{"Z": "1", "A": "2"})

	assert.Equal([]string{"PATH=/bin", "A=2", "Z=1"}, got)
	assert.Equal([]string{"PATH=/bin"}, base)
}
