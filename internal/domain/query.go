package domain

import "time"

// QueryKind names the upstream list that was requested.
type QueryKind string

const (
	QueryPopular QueryKind = "popular"
	QuerySearch  QueryKind = "search"
)

// QueryTrigger names what caused a query to fire.
type QueryTrigger string

const (
	TriggerInitial QueryTrigger = "initial"
	TriggerInput   QueryTrigger = "input"
	TriggerAPI     QueryTrigger = "api"
)

// QueryOutcome classifies how a fired query ended.
type QueryOutcome string

const (
	OutcomeOK            QueryOutcome = "ok"
	OutcomeEmpty         QueryOutcome = "empty"
	OutcomeFailed        QueryOutcome = "failed"
	OutcomeSuperseded    QueryOutcome = "superseded"
	OutcomeConfigMissing QueryOutcome = "config_missing"
)

// Valid reports whether o is a known outcome.
func (o QueryOutcome) Valid() bool {
	switch o {
	case OutcomeOK, OutcomeEmpty, OutcomeFailed, OutcomeSuperseded, OutcomeConfigMissing:
		return true
	}
	return false
}

// QueryEvent is the diagnostic record written for every fired query.
// It never carries movie results.
type QueryEvent struct {
	ID          int64
	SessionID   string
	Trigger     QueryTrigger
	Kind        QueryKind
	Query       string
	Outcome     QueryOutcome
	ResultCount int
	Error       string
	Duration    time.Duration
	CreatedAt   time.Time
}

// OutcomeCount aggregates events per outcome.
type OutcomeCount struct {
	Outcome QueryOutcome
	Count   int64
}

// OutcomeOf classifies a completed, current query.
func OutcomeOf(results int, err error) QueryOutcome {
	switch {
	case err != nil:
		return OutcomeFailed
	case results == 0:
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}
