package v93xx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegisterMap(t *testing.T) {
	m := DefaultRegisterMap()
	assert.Equal(t, 128, m.Len())
	assert.Equal(t, "DSP_ANA0", m.Name(0x00))
	assert.Equal(t, "DSP_CTRL0", m.Name(0x02))
	assert.Equal(t, "SYS_IOCFG0", m.Name(0x7D))
	assert.Equal(t, "SYS_VERSION", m.Name(0x7F))
}

func TestRegisterMap_UnknownAndNil(t *testing.T) {
	var m *RegisterMap
	assert.Equal(t, "REG_0x02", m.Name(0x02))
	assert.Equal(t, 0, m.Len())

	empty := &RegisterMap{}
	assert.Equal(t, "REG_0x80", empty.Name(0x80))
}

func TestLoadRegisterMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("registers:\n  0x02: GAIN_CTRL\n  0x80: EXT_PAGE\n"), 0o600))

	m, err := LoadRegisterMap(path)
	require.NoError(t, err)
	assert.Equal(t, "GAIN_CTRL", m.Name(0x02))
	assert.Equal(t, "EXT_PAGE", m.Name(0x80))
	assert.Equal(t, "DSP_ANA0", m.Name(0x00))
	assert.Equal(t, 129, m.Len())

	_, err = LoadRegisterMap(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("registers: [1, 2"), 0o600))
	_, err = LoadRegisterMap(bad)
	assert.Error(t, err)
}
