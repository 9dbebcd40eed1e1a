// Package comparison talks to the remote image-comparison service that
// scores a returned device's photographs against reference images.
package comparison

import "context"

// Type tags which phase of the two-phase protocol an upload belongs to
type Type string

const (
	TypeFront Type = "front"
	TypeBack  Type = "back"
)

// Valid reports whether t is a known comparison type
func (t Type) Valid() bool {
	return t == TypeFront || t == TypeBack
}

// Metrics are the per-image scores returned by the service
type Metrics struct {
	Similarity float64 `json:"similarity"`
	SSI        float64 `json:"ssi"`
}

// Response covers both response shapes. The intermediate shape only carries
// HighlightedImage; the final shape carries the overall verdict as well.
type Response struct {
	Message           string   `json:"message,omitempty"`
	HighlightedImage  string   `json:"highlighted_image,omitempty"`
	OverallCondition  string   `json:"overall_condition,omitempty"`
	OverallSimilarity *float64 `json:"overall_similarity,omitempty"`
	OverallSSI        *float64 `json:"overall_ssi,omitempty"`
	Front             *Metrics `json:"front,omitempty"`
	Back              *Metrics `json:"back,omitempty"`
}

// Final reports whether the response carries the completion signal
func (r *Response) Final() bool {
	return r != nil && r.OverallCondition != ""
}

// Image is the payload of one upload
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Client uploads one photograph for comparison
type Client interface {
	// Compare sends the image tagged with its comparison type and returns
	// the decoded response
	Compare(ctx context.Context, t Type, img Image) (*Response, error)
}
