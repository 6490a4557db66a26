package main

import (
	"github.com/franz/hidden-gems/internal/report"
	"github.com/franz/hidden-gems/internal/util"
	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (HGF_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// GetConfigFloat retrieves a float config value with proper precedence
func GetConfigFloat(key string, defaultValue float64) float64 {
	val := viper.GetFloat64(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// setupLogging applies --verbose/--quiet and terminal detection to the console logger
func setupLogging() {
	util.SetVerbose(GetConfigBool("verbose"))
	util.SetQuiet(GetConfigBool("quiet"))
	util.ConfigureColors()
}

// openEventLogger creates the JSONL event log under artifacts/, falling back to a
// no-op logger when the directory is not writable
func openEventLogger() *report.EventLogger {
	logLevel := report.LevelInfo
	if GetConfigBool("quiet") {
		logLevel = report.LevelWarning
	} else if GetConfigBool("verbose") {
		logLevel = report.LevelDebug
	}
	if name := GetConfigString("event-level", ""); name != "" {
		logLevel = report.ParseLevel(name)
	}

	logger, err := report.NewEventLogger(GetConfigString("artifacts", "artifacts"), logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}
	return logger
}
