package v93xx

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed registers.yaml
var defaultRegistersYAML []byte

// RegisterMap 寄存器地址 -> 名称
type RegisterMap struct {
	Registers map[int]string `yaml:"registers"`
}

// DefaultRegisterMap 返回内置的 V93xx 寄存器表
func DefaultRegisterMap() *RegisterMap {
	m, err := parseRegisterMap(defaultRegistersYAML)
	if err != nil {
		// 内置表由仓库维护，解析失败时退化为空表
		return &RegisterMap{Registers: map[int]string{}}
	}
	return m
}

// LoadRegisterMap 从 YAML 文件加载寄存器表，并覆盖到内置表之上
func LoadRegisterMap(path string) (*RegisterMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read register map: %w", err)
	}
	override, err := parseRegisterMap(b)
	if err != nil {
		return nil, err
	}
	m := DefaultRegisterMap()
	m.Merge(override)
	return m, nil
}

func parseRegisterMap(b []byte) (*RegisterMap, error) {
	var m RegisterMap
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal register map: %w", err)
	}
	if m.Registers == nil {
		m.Registers = make(map[int]string)
	}
	return &m, nil
}

// Name 返回地址对应的寄存器名；未知地址返回 REG_0xNN
func (m *RegisterMap) Name(addr uint8) string {
	if m != nil && m.Registers != nil {
		if n, ok := m.Registers[int(addr)]; ok {
			return n
		}
	}
	return fmt.Sprintf("REG_0x%02X", addr)
}

// Merge 合并另一张表，同地址以 other 为准
func (m *RegisterMap) Merge(other *RegisterMap) {
	if m == nil || other == nil || other.Registers == nil {
		return
	}
	if m.Registers == nil {
		m.Registers = make(map[int]string, len(other.Registers))
	}
	for k, v := range other.Registers {
		m.Registers[k] = v
	}
}

// Len 表项数量
func (m *RegisterMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Registers)
}
