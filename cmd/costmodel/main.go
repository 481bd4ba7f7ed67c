package main

import (
	"os"

	"github.com/flowsched/costmodel/cmd/costmodel/cmd"
	"github.com/flowsched/costmodel/internal/common"
)

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
