package cli

import "time"

// ComputeConfig holds the inputs of a requirements run.
type ComputeConfig struct {
	SessionsFile string         // sessions CSV
	RulesFile    string         // rule table YAML, empty for the built-in table
	DailyOut     string         // daily CSV, skipped when empty
	WeeklyOut    string         // weekly CSV, skipped when empty
	Location     *time.Location // zone of naive datetimes
	Parallelism  int            // calculator workers
}

// OptimizeConfig holds the inputs of a local planning run.
type OptimizeConfig struct {
	SessionsFile     string
	RosterFile       string
	AvailabilityFile string // weekly grid, optional
	RulesFile        string
	Date             string // restricts the plan to one day, YYYY-MM-DD
	AssignmentsOut   string // assignment CSV, skipped when empty
	Location         *time.Location
	Parallelism      int
	TimeBudget       time.Duration // zero keeps the rule table's budget
	Seed             *int64 // nil keeps the rule table's seed
	Strict           *bool  // nil keeps the rule table's policy
}

// SubmitConfig holds the inputs of a remote planning run against the
// HTTP service.
type SubmitConfig struct {
	BaseURL          string
	SessionsFile     string
	RosterFile       string
	AvailabilityFile string
	Date             string
	Location         *time.Location
	Timeout          time.Duration // per request
	PollInterval     time.Duration
	Wait             bool // poll until the plan is terminal
}

// Stats holds counters of one run.
type Stats struct {
	RowsRead     int
	RowsRejected int
	Sessions     int
	Coaches      int
	StartTime    time.Time
	Duration     time.Duration
}
