// Package scheduler runs the admission control loop.
//
// Each scan it computes the free slots (max simultaneous jobs minus jobs
// currently Running), orders the enabled jobs so the one queued longest ago
// goes first, and admits every job whose schedule is ready and whose
// dependencies have produced a fresher success than the job itself. Admitted
// jobs go to the JobQueue; execution belongs to internal/task/engine.
package scheduler
