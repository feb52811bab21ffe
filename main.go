package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sawring/sawring/cmd"
	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/logger"
)

func main() {
	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings)

	err := rootCmd.ExecuteContext(context.Background())
	_ = logger.Global().Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
