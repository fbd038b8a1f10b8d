// Package state holds the engine's shared mutable state: the current status of
// every job and the bounded result history per job. Both stores publish every
// change on an eventbus stream.
package state

import "time"

// Status is the current lifecycle state of one job.
//
// The set of variants is closed: StatusInitial, StatusRunning, StatusSuccess,
// StatusFailed, StatusSkipped and StatusCancelled. Consumers switch over all of them.
type Status interface {
	JobName() string
	Timestamp() time.Time
	isStatus()
}

// StatusInfo is embedded in every status variant.
type StatusInfo struct {
	Job string
	TS  time.Time
}

func (i StatusInfo) JobName() string      { return i.Job }
func (i StatusInfo) Timestamp() time.Time { return i.TS }

type (
	StatusInitial   struct{ StatusInfo }
	StatusRunning   struct{ StatusInfo }
	StatusSuccess   struct{ StatusInfo }
	StatusCancelled struct{ StatusInfo }
	StatusFailed    struct {
		StatusInfo
		Message string
	}
	StatusSkipped struct {
		StatusInfo
		Reason string
	}
)

func (StatusInitial) isStatus()   {}
func (StatusRunning) isStatus()   {}
func (StatusSuccess) isStatus()   {}
func (StatusFailed) isStatus()    {}
func (StatusSkipped) isStatus()   {}
func (StatusCancelled) isStatus() {}

// Status names as they appear in records, logs and the API.
const (
	StateInitial   = "initial"
	StateRunning   = "running"
	StateSuccess   = "success"
	StateFailed    = "failed"
	StateSkipped   = "skipped"
	StateCancelled = "cancelled"
)

// StatusRecord is the flat, serializable form of a Status.
type StatusRecord struct {
	Job    string    `json:"job"`
	State  string    `json:"state"`
	Detail string    `json:"detail,omitempty"`
	TS     time.Time `json:"ts"`
}

// StatusRecordOf flattens s.
func StatusRecordOf(s Status) StatusRecord {
	rec := StatusRecord{Job: s.JobName(), TS: s.Timestamp()}
	switch v := s.(type) {
	case StatusInitial:
		rec.State = StateInitial
	case StatusRunning:
		rec.State = StateRunning
	case StatusSuccess:
		rec.State = StateSuccess
	case StatusFailed:
		rec.State = StateFailed
		rec.Detail = v.Message
	case StatusSkipped:
		rec.State = StateSkipped
		rec.Detail = v.Reason
	case StatusCancelled:
		rec.State = StateCancelled
	}
	return rec
}

// StatusFromResult derives the status that reflects a terminal result.
func StatusFromResult(r Result) Status {
	info := StatusInfo{Job: r.JobName(), TS: r.Info().End}
	switch v := r.(type) {
	case ResultSuccess:
		return StatusSuccess{info}
	case ResultFailure:
		return StatusFailed{StatusInfo: info, Message: v.Message}
	case ResultSkipped:
		return StatusSkipped{StatusInfo: info, Reason: v.Reason}
	case ResultCancelled:
		return StatusCancelled{info}
	}
	return StatusFailed{StatusInfo: info, Message: "unknown result"}
}
