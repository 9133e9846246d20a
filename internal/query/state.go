package query

import "time"

// Status describes whether a query has produced data.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// FetchStatus describes whether a fetch is in flight.
type FetchStatus int

const (
	FetchIdle FetchStatus = iota
	Fetching
)

func (s FetchStatus) String() string {
	if s == Fetching {
		return "fetching"
	}
	return "idle"
}

// State is a snapshot of a cached query.
// Data from the last successful fetch is kept when a later fetch fails.
type State struct {
	Data        interface{}
	Err         error
	Status      Status
	FetchStatus FetchStatus
	IsStale     bool
	UpdatedAt   time.Time
	FetchCount  int
}

func (s State) IsIdle() bool       { return s.Status == StatusIdle && s.FetchStatus == FetchIdle }
func (s State) IsLoading() bool    { return s.Status == StatusLoading }
func (s State) IsFetching() bool   { return s.FetchStatus == Fetching }
func (s State) IsSuccess() bool    { return s.Status == StatusSuccess }
func (s State) IsError() bool      { return s.Status == StatusError }
func (s State) IsFetched() bool    { return s.FetchCount > 0 }
func (s State) IsRefetching() bool { return s.IsFetching() && s.FetchCount > 0 }
