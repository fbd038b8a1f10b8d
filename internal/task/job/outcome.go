package job

// Outcome is what an action reports when it returns normally.
//
// It is a closed set: Success, Failure and Skipped. Switches over Outcome
// should list all three.
type Outcome interface {
	isOutcome()
}

type Success struct{}

type Failure struct {
	Message string
}

type Skipped struct {
	Reason string
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}
func (Skipped) isOutcome() {}
