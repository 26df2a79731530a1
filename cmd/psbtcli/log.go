package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	psbt "github.com/ghost-coin/psbt-sdk"
	"github.com/ghost-coin/psbt-sdk/insight"
	"github.com/ghost-coin/psbt-sdk/store"
)

// backendLog is the logging backend all subsystem loggers write to.
var backendLog = btclog.NewBackend(os.Stderr)

var (
	log      = backendLog.Logger("PCLI")
	psbtLog  = backendLog.Logger("PSBT")
	insiLog  = backendLog.Logger("INSI")
	storeLog = backendLog.Logger("STOR")
)

func init() {
	psbt.UseLogger(psbtLog)
	insight.UseLogger(insiLog)
	store.UseLogger(storeLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"PCLI": log,
	"PSBT": psbtLog,
	"INSI": insiLog,
	"STOR": storeLog,
}

// setLogLevels sets the log level of every subsystem.
func setLogLevels(logLevel string) {
	level, _ := btclog.LevelFromString(logLevel)
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}

// parseAndSetDebugLevels accepts either a single level applied to all
// subsystems, or a comma separated list of subsystem=level pairs.
func parseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, "=") {
		if _, ok := btclog.LevelFromString(debugLevel); !ok {
			return fmt.Errorf("invalid debug level %q", debugLevel)
		}
		setLogLevels(debugLevel)
		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("invalid subsystem=level pair %q", pair)
		}

		subsystem, levelStr := fields[0], fields[1]
		logger, ok := subsystemLoggers[subsystem]
		if !ok {
			return fmt.Errorf("unknown subsystem %q, supported "+
				"subsystems are %v", subsystem, supportedSubsystems())
		}

		level, ok := btclog.LevelFromString(levelStr)
		if !ok {
			return fmt.Errorf("invalid debug level %q", levelStr)
		}
		logger.SetLevel(level)
	}
	return nil
}

func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsystem := range subsystemLoggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)
	return subsystems
}
