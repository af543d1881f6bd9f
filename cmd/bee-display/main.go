package main

import (
	"os"

	"github.com/taoyao-code/bee-spectrum/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
)

func main() {
	cmd := bootstrap.NewCommand(cfgpkg.StageDisplay, "Draw grid frames from the spectrum stage on an SSD1306 panel", bootstrap.RunDisplay)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
