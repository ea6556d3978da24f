package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret", "-t", "15", "-r", "120", "-v=false", "-l", "debug"},
			expected: &Config{
				HTTPAddr:          "127.0.0.1:9090",
				DatabaseDSN:       "db",
				SecretKey:         "secret",
				SessionTokenTTL:   15 * time.Minute,
				RefreshTokenTTL:   2 * time.Hour,
				EmailVerification: false,
				LogLevel:          "debug",
			},
		},
		{
			name: "bare bool flag and foreign flags",
			args: []string{"-v", "-c", "cfg.json", "-x", "1"},
			expected: &Config{
				EmailVerification: true,
			},
		},
		{
			name:    "non-numeric duration",
			args:    []string{"-t", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := parseFlags(cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, cfg))
		})
	}
}
