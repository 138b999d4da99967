package main

import (
	"fmt"

	"github.com/your-org/qc-cell/internal/config"
)

// Root bundles the state every subcommand needs: the resolved config
// path and the parsed config, loaded lazily so --help and other
// config-free invocations never touch the filesystem.
type Root struct {
	configPath string
	cfg        *config.Config
}

func NewRoot() *Root {
	return &Root{configPath: "configs/config.yaml"}
}

func (r *Root) config() (*config.Config, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}
	cfg, err := config.Load(r.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	r.cfg = cfg
	return cfg, nil
}
