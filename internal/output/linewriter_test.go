package output_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runq/internal/output"
)

func TestLineWriter(t *testing.T) {
	tests := map[string]struct {
		chunks   []string
		expLines []string
	}{
		"Complete lines should be forwarded as lines.": {
			chunks:   []string{"a\nb\n"},
			expLines: []string{"a", "b"},
		},

		"Split lines should be joined.": {
			chunks:   []string{"he", "llo\nwor", "ld\n"},
			expLines: []string{"hello", "world"},
		},

		"Incomplete last line should be flushed on close.": {
			chunks:   []string{"a\nb"},
			expLines: []string{"a", "b"},
		},

		"Blank lines should be dropped by the channel.": {
			chunks:   []string{"a\n\n\nb\n"},
			expLines: []string{"a", "b"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			ch := output.NewChannel()
			lw := output.NewLineWriter(ch)
			for _, c := range test.chunks {
				n, err := lw.Write([]byte(c))
				require.NoError(err)
				require.Equal(len(c), n)
			}
			require.NoError(lw.Close())
			require.NoError(ch.Close())

			got := []string{}
			err := ch.Drain(context.Background(), func(line string) error {
				got = append(got, line)
				return nil
			})
			require.NoError(err)

			assert.Equal(t, test.expLines, got)
		})
	}
}
