package main

import (
	"os"

	"github.com/hamed0406/alarmwatch/internal/config"
)

func main() {
	cmd := rootCmd(config.FromEnv().APIBase, os.Stdout)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
