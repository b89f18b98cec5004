package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  api_key: "k"
database:
  host: "db"
  name: "faceid"
  user: "u"
  password: "p"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 0.45, cfg.Vision.MatchThreshold)
	assert.Equal(t, 0.2, cfg.Vision.CandidateThreshold)
	assert.Equal(t, 5, cfg.Vision.CandidateLimit)
	assert.Equal(t, 320, cfg.Vision.CanvasSize)
	assert.Equal(t, 140.0, cfg.Vision.TargetLuma)
	assert.Equal(t, 55.0, cfg.Vision.TargetLumaStd)
	assert.Equal(t, 15*time.Second, cfg.Vision.InferenceTimeout.Unwrap())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9001
vision:
  match_threshold: 0.6
  candidate_limit: 10
  inference_timeout: 3s
logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 0.6, cfg.Vision.MatchThreshold)
	assert.Equal(t, 10, cfg.Vision.CandidateLimit)
	assert.Equal(t, 3*time.Second, cfg.Vision.InferenceTimeout.Unwrap())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FACEID_SERVER_PORT", "7777")
	t.Setenv("FACEID_API_KEY", "from-env")
	t.Setenv("FACEID_DB_HOST", "db.internal")
	t.Setenv("FACEID_NATS_URL", "nats://broker:4222")

	path := writeConfig(t, `
server:
  port: 8080
  api_key: "from-file"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Server.APIKey)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a: mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, Name: "n", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@h:5433/n?sslmode=disable", d.DSN())
}
