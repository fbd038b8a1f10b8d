// Package job defines the immutable job configuration: calendar execution
// windows, schedule parts, schedules, and the Job itself, together with the
// pre-flight validation run over the whole job set before scheduling starts.
package job
