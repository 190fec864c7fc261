package main

import (
	"fmt"
	"os"

	"github.com/artea/corecoin/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.MNER)

func initLog(logFile, errLogFile, debugLevel string) {
	logger.InitLogRotators(logFile, errLogFile)

	if err := logger.ParseAndSetDebugLevels(debugLevel); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
