package workflow

import (
	"fmt"

	"github.com/zombor/auditly/internal/catalog"
	"github.com/zombor/auditly/internal/comparison"
	"github.com/zombor/auditly/internal/metadata"
	"github.com/zombor/auditly/internal/result"
)

// Event is an input to Transition
type Event interface {
	event()
}

// CategorySelected carries the chosen category and its filtered items
type CategorySelected struct {
	Category string
	Items    []catalog.Item
}

// ItemSelected carries the chosen item
type ItemSelected struct {
	Item string
}

// UploadCompleted carries a successful response for an upload step
type UploadCompleted struct {
	Step     Step
	Response *comparison.Response
}

// MetadataSubmitted carries the reference form
type MetadataSubmitted struct {
	Fields metadata.Fields
}

// FieldFocused clears one field's error ahead of resubmission
type FieldFocused struct {
	Field string
}

// ImagesAcknowledged is the user confirming the annotated images
type ImagesAcknowledged struct{}

// Restarted starts a new return
type Restarted struct{}

func (CategorySelected) event()   {}
func (ItemSelected) event()       {}
func (UploadCompleted) event()    {}
func (MetadataSubmitted) event()  {}
func (FieldFocused) event()       {}
func (ImagesAcknowledged) event() {}
func (Restarted) event()          {}

// Transition applies e to s and returns the next state. It has no side
// effects. On error the returned state is s unchanged, except a rejected
// metadata submission which returns s with the new error mapping.
func Transition(s State, e Event) (State, error) {
	switch e := e.(type) {
	case CategorySelected:
		return selectCategory(s, e)
	case ItemSelected:
		return selectItem(s, e)
	case UploadCompleted:
		return completeUpload(s, e)
	case MetadataSubmitted:
		return submitMetadata(s, e)
	case FieldFocused:
		return focusField(s, e)
	case ImagesAcknowledged:
		if s.Step != StepReviewImages {
			return s, fmt.Errorf("%w: acknowledge images at %s", ErrWrongStep, s.Step)
		}
		next := s.Clone()
		next.Step = StepShowResult
		return next, nil
	case Restarted:
		if s.Step != StepShowResult {
			return s, fmt.Errorf("%w: restart at %s", ErrWrongStep, s.Step)
		}
		return NewState(), nil
	default:
		return s, fmt.Errorf("unknown event %T", e)
	}
}

func selectCategory(s State, e CategorySelected) (State, error) {
	if s.Step != StepSelectItem {
		return s, fmt.Errorf("%w: select category at %s", ErrWrongStep, s.Step)
	}
	next := s.Clone()
	next.Category = e.Category
	next.Items = append([]catalog.Item{}, e.Items...)
	// An item from the previous category must never survive
	next.Item = ""
	return next, nil
}

func selectItem(s State, e ItemSelected) (State, error) {
	if s.Step != StepSelectItem {
		return s, fmt.Errorf("%w: select item at %s", ErrWrongStep, s.Step)
	}
	if s.Category == "" {
		return s, ErrNoCategory
	}
	if !catalog.Contains(s.Items, e.Item) {
		return s, fmt.Errorf("%w: %q not in %q", ErrItemNotInCategory, e.Item, s.Category)
	}
	next := s.Clone()
	next.Item = e.Item
	next.Step = StepUploadFront
	return next, nil
}

func completeUpload(s State, e UploadCompleted) (State, error) {
	if s.Step != e.Step {
		return s, fmt.Errorf("%w: %s upload at %s", ErrWrongStep, e.Step, s.Step)
	}
	if e.Response == nil {
		return s, fmt.Errorf("%w: empty response", comparison.ErrUploadFailed)
	}

	next := s.Clone()
	switch e.Step {
	case StepUploadFront:
		if e.Response.Final() {
			return s, fmt.Errorf("%w: front upload returned a final verdict", comparison.ErrOutOfOrderUpload)
		}
		next.Images.Front = e.Response.HighlightedImage
		next.Step = StepUploadBack
	case StepUploadBack:
		if !e.Response.Final() {
			return s, fmt.Errorf("%w: back upload returned no verdict", comparison.ErrOutOfOrderUpload)
		}
		next.Images.Back = e.Response.HighlightedImage
		next.Result = result.FromResponse(e.Response)
		next.Step = StepReviewMetadata
	default:
		return s, fmt.Errorf("%w: %s is not an upload step", ErrWrongStep, e.Step)
	}
	return next, nil
}

func submitMetadata(s State, e MetadataSubmitted) (State, error) {
	if s.Step != StepReviewMetadata {
		return s, fmt.Errorf("%w: submit metadata at %s", ErrWrongStep, s.Step)
	}
	next := s.Clone()
	next.Form = e.Fields
	next.Errors = metadata.Validate(e.Fields)
	if len(next.Errors) > 0 {
		return next, &ValidationError{Errors: next.Clone().Errors}
	}
	next.Form = e.Fields.Trimmed()
	next.Step = StepReviewImages
	return next, nil
}

func focusField(s State, e FieldFocused) (State, error) {
	if !metadata.IsField(e.Field) {
		return s, fmt.Errorf("%w: %q", ErrUnknownField, e.Field)
	}
	next := s.Clone()
	delete(next.Errors, e.Field)
	return next, nil
}
