package main

import (
	"os"

	"github.com/taoyao-code/bee-spectrum/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
)

func main() {
	cmd := bootstrap.NewCommand(cfgpkg.StageSpectrum, "Render 6-byte band frames into grid frames for the display", bootstrap.RunSpectrum)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
