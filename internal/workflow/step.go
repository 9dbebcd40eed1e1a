package workflow

import "github.com/zombor/auditly/internal/comparison"

// Step is the ordinal position in the return process
type Step int

const (
	StepSelectItem Step = iota
	StepUploadFront
	StepUploadBack
	StepReviewMetadata
	StepReviewImages
	StepShowResult
)

var stepNames = [...]string{
	"select_item",
	"upload_front",
	"upload_back",
	"review_metadata",
	"review_images",
	"show_result",
}

var stepLabels = [...]string{
	"Select a device",
	"Upload Front",
	"Upload Back",
	"Review Input Data",
	"Image Data",
	"Review",
}

// Valid reports whether s is one of the six steps
func (s Step) Valid() bool {
	return s >= StepSelectItem && s <= StepShowResult
}

func (s Step) String() string {
	if !s.Valid() {
		return "unknown"
	}
	return stepNames[s]
}

// Label is the text shown in the progress indicator
func (s Step) Label() string {
	if !s.Valid() {
		return ""
	}
	return stepLabels[s]
}

// ComparisonType returns the upload tag for an upload step
func (s Step) ComparisonType() (comparison.Type, bool) {
	switch s {
	case StepUploadFront:
		return comparison.TypeFront, true
	case StepUploadBack:
		return comparison.TypeBack, true
	}
	return "", false
}

// StepForSide maps "front"/"back" to the matching upload step
func StepForSide(side string) (Step, bool) {
	switch comparison.Type(side) {
	case comparison.TypeFront:
		return StepUploadFront, true
	case comparison.TypeBack:
		return StepUploadBack, true
	}
	return 0, false
}

// StageStatus is how a stage appears in the progress indicator
type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageActive    StageStatus = "active"
	StagePending   StageStatus = "pending"
)

// Stage is one entry of the six-stage progress indicator
type Stage struct {
	Step   Step        `json:"step"`
	Name   string      `json:"name"`
	Label  string      `json:"label"`
	Status StageStatus `json:"status"`
}

// Progress lays out the indicator for the current step
func Progress(current Step) []Stage {
	stages := make([]Stage, 0, len(stepNames))
	for s := StepSelectItem; s <= StepShowResult; s++ {
		status := StagePending
		switch {
		case s < current:
			status = StageCompleted
		case s == current:
			status = StageActive
		}
		stages = append(stages, Stage{Step: s, Name: s.String(), Label: s.Label(), Status: status})
	}
	return stages
}
