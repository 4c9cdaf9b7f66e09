package entity

import (
	"fmt"
	"time"
)

// Status is the final result of one recipient.
type Status int8

const (
	StatusSuccess Status = iota + 1
	StatusFailure
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// Stage is a step of the per-recipient pipeline.
//
//	Pending -> Rendering -> {RenderFailed | Rendered} -> Packaging ->
//	{PackageFailed | Packaged} -> Sending -> {SendFailed | Sent}
type Stage int8

const (
	StagePending Stage = iota
	StageRendering
	StageRenderFailed
	StageRendered
	StagePackaging
	StagePackageFailed
	StagePackaged
	StageSending
	StageSendFailed
	StageSent
)

func (s Stage) String() string {
	switch s {
	case StageRendering:
		return "Rendering"
	case StageRenderFailed:
		return "RenderFailed"
	case StageRendered:
		return "Rendered"
	case StagePackaging:
		return "Packaging"
	case StagePackageFailed:
		return "PackageFailed"
	case StagePackaged:
		return "Packaged"
	case StageSending:
		return "Sending"
	case StageSendFailed:
		return "SendFailed"
	case StageSent:
		return "Sent"
	default:
		return "Pending"
	}
}

// Outcome is the result of processing one recipient.
type Outcome struct {
	Recipient Recipient
	// Position is the zero-based index of the record in the batch input.
	// Skipped blank records keep their index, so positions may have gaps.
	Position int
	Status   Status
	Stage    Stage
	Detail   string
}

// SuccessOutcome builds the confirmation for a delivered certificate.
func SuccessOutcome(r Recipient) Outcome {
	return Outcome{
		Recipient: r,
		Status:    StatusSuccess,
		Stage:     StageSent,
		Detail:    fmt.Sprintf("Certificate sent successfully to %s (%s)", r.FullName, r.Email),
	}
}

// FailureOutcome builds a failure attributed to the stage it stopped at.
func FailureOutcome(r Recipient, stage Stage, err error) Outcome {
	return Outcome{
		Recipient: r,
		Status:    StatusFailure,
		Stage:     stage,
		Detail:    fmt.Sprintf("Error processing %s (%s): %v", r.FullName, r.Email, err),
	}
}

// SkippedOutcome records a recipient that was not sent again.
func SkippedOutcome(r Recipient, reason string) Outcome {
	return Outcome{
		Recipient: r,
		Status:    StatusSkipped,
		Stage:     StagePending,
		Detail:    fmt.Sprintf("Skipped %s (%s): %s", r.FullName, r.Email, reason),
	}
}

// Report holds the outcomes of one batch in input order.
type Report struct {
	BatchID    string
	Outcomes   []Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Count returns how many outcomes have the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}
