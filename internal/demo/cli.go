package demo

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/robojudge/scorecard/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "demo_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the demo session tool.
func ShowHelp() {
	os.Stdout.WriteString(`Scorecard Demo Session Tool
===========================

Drives a full judging session against a running scorecard service:
template creation, panel scoring, submission, and consistency checks.

Usage:
  go run cmd/demo-events/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9090")
  -category string
        Competition category code to score (default "spike")
  -teams int
        Number of teams to judge (default 20)
  -judges int
        Number of judges scoring each team (default 3)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for session output (default: demo_log_TIMESTAMP.log)
  -bias
        Plant a low-scoring judge on some teams (default true)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run cmd/demo-events/main.go

  # Run a large session against a custom host
  go run cmd/demo-events/main.go -teams 100 -judges 5 -url http://localhost:8080

  # Run without the planted outlier judge
  go run cmd/demo-events/main.go -bias=false -verbose
`)
}
