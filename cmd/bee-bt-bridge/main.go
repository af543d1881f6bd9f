package main

import (
	"os"

	"github.com/taoyao-code/bee-spectrum/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
)

func main() {
	cmd := bootstrap.NewCommand(cfgpkg.StageBTBridge, "Relay band frames from an RFCOMM client to the spectrum stage", bootstrap.RunBTBridge)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
