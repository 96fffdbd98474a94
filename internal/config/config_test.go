package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  env: test\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "v93xx-probe", cfg.App.Name)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, ":7000", cfg.TCP.Addr)
	assert.Equal(t, 5*time.Minute, cfg.TCP.ReadTimeout)
	assert.Equal(t, "strict", cfg.Analyzer.Mode)
	assert.Equal(t, "v93xx", cfg.Analyzer.Dialect)
	assert.Equal(t, 4096, cfg.Analyzer.ReadChunk)
	assert.False(t, cfg.Database.Enable)
	assert.Equal(t, "v93xx:records", cfg.Redis.Stream)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
analyzer:
  mode: dirty
  lookahead: capture
  emitNoise: true
tcp:
  maxConnections: 8
`)
	t.Setenv("PROBE_TCP_ADDR", ":9100")
	t.Setenv("PROBE_ANALYZER_DIALECT", "regframe")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.TCP.Addr)
	assert.Equal(t, 8, cfg.TCP.MaxConnections)
	assert.Equal(t, "regframe", cfg.Analyzer.Dialect)

	opts, err := cfg.Analyzer.Options(nil)
	require.NoError(t, err)
	assert.Equal(t, v93xx.ModeLenient, opts.Mode)
	assert.Equal(t, v93xx.LookaheadCapture, opts.LookaheadFrom)
	assert.True(t, opts.EmitNoise)
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	path := writeConfig(t, "http:\n  addr: \":18080\"\n")
	t.Setenv("PROBE_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":18080", cfg.HTTP.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "默认配置", body: "app:\n  env: dev\n"},
		{name: "未知模式", body: "analyzer:\n  mode: loose\n", wantErr: true},
		{name: "未知方言", body: "analyzer:\n  dialect: crc\n", wantErr: true},
		{name: "未知前瞻", body: "analyzer:\n  lookahead: far\n", wantErr: true},
		{name: "读块为0", body: "analyzer:\n  readChunk: 0\n", wantErr: true},
		{name: "启用数据库缺少DSN", body: "database:\n  enable: true\n  dsn: \"\"\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAnalyzerConfig_Registers(t *testing.T) {
	regs, err := AnalyzerConfig{}.Registers()
	require.NoError(t, err)
	assert.Equal(t, "DSP_CTRL0", regs.Name(0x02))

	_, err = AnalyzerConfig{RegisterMap: filepath.Join(t.TempDir(), "none.yaml")}.Registers()
	assert.Error(t, err)
}
