package state

import "time"

// Result is the terminal outcome of one execution (all attempts included).
//
// The set of variants is closed: ResultSuccess, ResultFailure, ResultSkipped
// and ResultCancelled.
type Result interface {
	JobName() string
	Info() ResultInfo
	isResult()
}

// ResultInfo is embedded in every result variant. End is never before Start.
type ResultInfo struct {
	Job      string
	RunID    string
	Start    time.Time
	End      time.Time
	Attempts int
}

func (i ResultInfo) JobName() string  { return i.Job }
func (i ResultInfo) Info() ResultInfo { return i }

// ExecutionSeconds is End - Start in seconds.
func (i ResultInfo) ExecutionSeconds() float64 { return i.End.Sub(i.Start).Seconds() }

type (
	ResultSuccess   struct{ ResultInfo }
	ResultCancelled struct{ ResultInfo }
	ResultFailure   struct {
		ResultInfo
		Message string
	}
	ResultSkipped struct {
		ResultInfo
		Reason string
	}
)

func (ResultSuccess) isResult()   {}
func (ResultFailure) isResult()   {}
func (ResultSkipped) isResult()   {}
func (ResultCancelled) isResult() {}

// Outcome names as they appear in records and metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeSkipped   = "skipped"
	OutcomeCancelled = "cancelled"
)

// ResultRecord is the flat, serializable form of a Result.
type ResultRecord struct {
	Job              string    `json:"job"`
	RunID            string    `json:"run_id"`
	Outcome          string    `json:"outcome"`
	Detail           string    `json:"detail,omitempty"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	ExecutionSeconds float64   `json:"execution_seconds"`
	Attempts         int       `json:"attempts"`
}

// OutcomeOf names the variant of r.
func OutcomeOf(r Result) string {
	switch r.(type) {
	case ResultSuccess:
		return OutcomeSuccess
	case ResultFailure:
		return OutcomeFailure
	case ResultSkipped:
		return OutcomeSkipped
	case ResultCancelled:
		return OutcomeCancelled
	}
	return "unknown"
}

// ResultRecordOf flattens r.
func ResultRecordOf(r Result) ResultRecord {
	info := r.Info()
	rec := ResultRecord{
		Job:              info.Job,
		RunID:            info.RunID,
		Outcome:          OutcomeOf(r),
		Start:            info.Start,
		End:              info.End,
		ExecutionSeconds: info.ExecutionSeconds(),
		Attempts:         info.Attempts,
	}
	switch v := r.(type) {
	case ResultFailure:
		rec.Detail = v.Message
	case ResultSkipped:
		rec.Detail = v.Reason
	case ResultSuccess, ResultCancelled:
	}
	return rec
}

// ResultFromRecord rebuilds a Result from its flat form. Unknown outcomes
// become failures so they still block dependency freshness.
func ResultFromRecord(rec ResultRecord) Result {
	info := ResultInfo{Job: rec.Job, RunID: rec.RunID, Start: rec.Start, End: rec.End, Attempts: rec.Attempts}
	switch rec.Outcome {
	case OutcomeSuccess:
		return ResultSuccess{info}
	case OutcomeSkipped:
		return ResultSkipped{ResultInfo: info, Reason: rec.Detail}
	case OutcomeCancelled:
		return ResultCancelled{info}
	default:
		return ResultFailure{ResultInfo: info, Message: rec.Detail}
	}
}
