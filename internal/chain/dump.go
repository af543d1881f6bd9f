package chain

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
)

// DumpConfig 以 YAML 输出生效配置，可直接保存为 bee_config.yaml
func DumpConfig(w io.Writer, cfg *cfgpkg.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
