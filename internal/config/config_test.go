package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robokin/internal/dataprocessing"
	"robokin/internal/validation"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no file or env vars",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, []string{"1", "2"}, cfg.Pipeline.Robots)
				assert.Equal(t, dataprocessing.DuplicatePolicyLast, cfg.DuplicatePolicy())
				assert.Equal(t, "both", cfg.Storage.Sink)
				assert.Len(t, cfg.Validation.Rules, 6)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"ROBOKIN_SERVER_PORT":               "9090",
				"ROBOKIN_SERVER_READ_TIMEOUT":       "30s",
				"ROBOKIN_LOGGING_LEVEL":             "debug",
				"ROBOKIN_PIPELINE_ROBOTS":           "a,b,c",
				"ROBOKIN_PIPELINE_DUPLICATE_POLICY": "mean",
				"ROBOKIN_PIPELINE_MAX_CONCURRENCY":  "16",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, []string{"a", "b", "c"}, cfg.Pipeline.Robots)
				assert.Equal(t, dataprocessing.DuplicatePolicyMean, cfg.DuplicatePolicy())
				assert.Equal(t, 16, cfg.Pipeline.MaxConcurrency)
			},
		},
		{
			name: "file overlays defaults",
			file: `
server:
  port: 7000
pipeline:
  robots: ["left", "right"]
  stage_timeout: 2m
storage:
  sink: sqlite
  sqlite_path: /tmp/kin.db
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7000, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, []string{"left", "right"}, cfg.Pipeline.Robots)
				assert.Equal(t, []string{"x", "y", "z"}, cfg.Pipeline.Axes)
				assert.Equal(t, 2*time.Minute, cfg.Pipeline.StageTimeout)
				assert.Equal(t, "/tmp/kin.db", cfg.Storage.SQLitePath)
			},
		},
		{
			name: "env wins over file",
			file: "server:\n  port: 7000\n",
			env:  map[string]string{"ROBOKIN_SERVER_PORT": "7100"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7100, cfg.Server.Port)
			},
		},
		{
			name: "file rule table replaces defaults",
			file: `
validation:
  rules:
    run_uuid: {dtype: int}
    robot_id: {dtype: int, accepted_values: ["1", "2", "3"]}
    field: {dtype: string}
    time: {dtype: string}
    value: {dtype: float}
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Validation.Rules, 5)
				assert.NotContains(t, cfg.Validation.Rules, "sensor_type")
				assert.Equal(t, validation.DTypeInt, cfg.Validation.Rules["robot_id"].DType)

				schema, err := cfg.Schema()
				require.NoError(t, err)
				assert.True(t, schema.Accepts("robot_id", "3"))
			},
		},
		{
			name:    "invalid log level",
			env:     map[string]string{"ROBOKIN_LOGGING_LEVEL": "verbose"},
			wantErr: true,
		},
		{
			name:    "invalid duplicate policy",
			env:     map[string]string{"ROBOKIN_PIPELINE_DUPLICATE_POLICY": "first"},
			wantErr: true,
		},
		{
			name:    "csv sink requires a directory",
			env:     map[string]string{"ROBOKIN_STORAGE_SINK": "csv", "ROBOKIN_STORAGE_CSV_DIR": ""},
			wantErr: true,
		},
		{
			name:    "duplicate robots collide",
			env:     map[string]string{"ROBOKIN_PIPELINE_ROBOTS": "1,1"},
			wantErr: true,
		},
		{
			name:    "unknown dtype in file",
			file:    "validation:\n  rules:\n    value: {dtype: decimal}\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [port",
			wantErr: true,
		},
		{
			name:    "port out of range",
			env:     map[string]string{"ROBOKIN_SERVER_PORT": "70000"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	features, err := cfg.FeatureSchema()
	require.NoError(t, err)
	assert.Equal(t, 12, features.WideWidth())
	assert.Equal(t, 38, features.Width())
}
