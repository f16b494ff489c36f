package main

import (
	"marketwire/cmd/cmd"
	"marketwire/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
