package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		owned []string
		want  []string
	}{
		{
			name:  "short flag with separate value",
			args:  []string{"-r", "race-1", "-a", "localhost"},
			owned: []string{"-r"},
			want:  []string{"-r", "race-1"},
		},
		{
			name:  "equals form",
			args:  []string{"-u=http://timer.local", "-x", "1"},
			owned: []string{"-u"},
			want:  []string{"-u=http://timer.local"},
		},
		{
			name:  "order preserved across forms",
			args:  []string{"-u=a", "-r", "b", "-x", "1"},
			owned: []string{"-u", "-r"},
			want:  []string{"-u=a", "-r", "b"},
		},
		{
			name:  "unknown flags and positionals ignored",
			args:  []string{"-x", "1", "--y=2", "positional"},
			owned: []string{"-r"},
			want:  []string{},
		},
		{
			name:  "trailing flag without value",
			args:  []string{"-r"},
			owned: []string{"-r"},
			want:  []string{"-r"},
		},
		{
			name:  "flag followed by another flag",
			args:  []string{"-r", "-n"},
			owned: []string{"-r"},
			want:  []string{"-r"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.owned))
		})
	}
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, "station.json", ConfigFile([]string{"-r", "x", "-c", "station.json"}))
	assert.Equal(t, "alt.json", ConfigFile([]string{"-config=alt.json"}))
	assert.Equal(t, "", ConfigFile([]string{"-r", "x"}))
}
