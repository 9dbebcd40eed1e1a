// Package archive keeps a record of every completed return together with
// the photographs that were submitted for it.
package archive

import (
	"time"

	"github.com/zombor/auditly/internal/metadata"
	"github.com/zombor/auditly/internal/result"
	"github.com/zombor/auditly/internal/workflow"
)

// Photo references a stored photograph
type Photo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// Record is a completed return
type Record struct {
	ID        string            `json:"id"`
	Category  string            `json:"category"`
	Item      string            `json:"item"`
	Form      metadata.Fields   `json:"form"`
	Images    workflow.Images   `json:"images"`
	Result    *result.Aggregate `json:"result,omitempty"`
	Front     *Photo            `json:"front_photo,omitempty"`
	Back      *Photo            `json:"back_photo,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Photo returns the stored photograph for a side, or nil
func (r *Record) Photo(side string) *Photo {
	switch side {
	case "front":
		return r.Front
	case "back":
		return r.Back
	}
	return nil
}
