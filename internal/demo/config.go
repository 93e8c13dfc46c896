package demo

import "time"

// Config holds configuration for a demo judging session.
type Config struct {
	BaseURL       string        // Base URL of the service
	Category      string        // Competition category code to score
	NumTeams      int           // Number of teams to judge
	JudgesPerTeam int           // Number of judges scoring each team
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	LogFile       string        // Log file for session output
	Verbose       bool          // Enable verbose logging
	WithBias      bool          // Plant a low-scoring judge on some teams
}

// Stats holds demo session statistics.
type Stats struct {
	TemplatesCreated    int
	ScoresRecorded      int
	ScoresFailed        int
	ScoresSubmitted     int
	SubmissionsRejected int
	ScoresAutoValidated int
	TeamsChecked        int
	TeamsFlagged        int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
