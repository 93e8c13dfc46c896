package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/robojudge/scorecard/internal/demo"
)

// Default configuration constants.
const (
	defaultNumTeams       = 20
	defaultJudgesPerTeam  = 3
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 30 * time.Second
	defaultSessionTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9090", "Base URL of the service")
		category = flag.String("category", "spike", "Competition category code to score")
		teams    = flag.Int("teams", defaultNumTeams, "Number of teams to judge")
		judges   = flag.Int("judges", defaultJudgesPerTeam, "Number of judges scoring each team")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile  = flag.String("log", "", "Log file for session output (default: demo_log_TIMESTAMP.log)")
		bias     = flag.Bool("bias", true, "Plant a low-scoring judge on some teams")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		demo.ShowHelp()
		return
	}

	// Setup logging
	if err := demo.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultSessionTimeout)
	defer cancel()

	// Create session configuration
	config := &demo.Config{
		BaseURL:       *baseURL,
		Category:      *category,
		NumTeams:      *teams,
		JudgesPerTeam: *judges,
		Workers:       *workers,
		Timeout:       *timeout,
		LogFile:       *logFile,
		Verbose:       *verbose,
		WithBias:      *bias,
	}

	// Run the session
	if err := demo.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Demo session failed: " + err.Error() + "\n")
		return
	}
}
