package workflow

import (
	"maps"
	"slices"

	"github.com/zombor/auditly/internal/catalog"
	"github.com/zombor/auditly/internal/metadata"
	"github.com/zombor/auditly/internal/result"
)

// Images holds the annotated-image references returned by the service
type Images struct {
	Front string `json:"front,omitempty"`
	Back  string `json:"back,omitempty"`
}

// State is everything the workflow remembers about one return
type State struct {
	Step     Step              `json:"step"`
	Category string            `json:"category,omitempty"`
	Items    []catalog.Item    `json:"items"`
	Item     string            `json:"item,omitempty"`
	Images   Images            `json:"images"`
	Form     metadata.Fields   `json:"form"`
	Errors   metadata.Errors   `json:"errors"`
	Result   *result.Aggregate `json:"result,omitempty"`
}

// NewState returns the blank state a return starts in
func NewState() State {
	return State{
		Step:   StepSelectItem,
		Items:  []catalog.Item{},
		Errors: metadata.Errors{},
	}
}

// Clone returns a deep copy so callers never share maps or slices with the controller
func (s State) Clone() State {
	c := s
	c.Items = slices.Clone(s.Items)
	if c.Items == nil {
		c.Items = []catalog.Item{}
	}
	c.Errors = maps.Clone(s.Errors)
	if c.Errors == nil {
		c.Errors = metadata.Errors{}
	}
	c.Result = s.Result.Clone()
	return c
}
