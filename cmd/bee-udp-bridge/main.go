package main

import (
	"os"

	"github.com/taoyao-code/bee-spectrum/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
)

func main() {
	cmd := bootstrap.NewCommand(cfgpkg.StageUDPBridge, "Relay 6-byte UDP datagrams to the spectrum stage", bootstrap.RunUDPBridge)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
