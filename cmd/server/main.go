package main

import (
	"github.com/OFFIS-RIT/recgraph/internal/server"
	"github.com/OFFIS-RIT/recgraph/internal/util"
	"github.com/OFFIS-RIT/recgraph/pkg/logger"
	"github.com/OFFIS-RIT/recgraph/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Format: util.GetEnvString("LOG_FORMAT", "text"),
	})
	logger.Init(consoleLogger)

	server.Init()
}
