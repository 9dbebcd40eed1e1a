// Package result turns the comparison service's final response into the
// verdict shown at the end of a return.
package result

import (
	"strconv"

	"github.com/zombor/auditly/internal/comparison"
)

// Metrics are the per-image scores
type Metrics struct {
	Similarity float64 `json:"similarity"`
	SSI        float64 `json:"ssi"`
}

// Aggregate is the normalized verdict. Every metric group is optional.
type Aggregate struct {
	Condition          string   `json:"condition"`
	Front              *Metrics `json:"front,omitempty"`
	Back               *Metrics `json:"back,omitempty"`
	CombinedSimilarity *float64 `json:"combined_similarity,omitempty"`
	CombinedSSI        *float64 `json:"combined_ssi,omitempty"`
}

// Row is one labelled value
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section is a titled group of rows on the result screen
type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// FromResponse maps the final response field by field. It returns nil when
// the response does not carry the completion signal.
func FromResponse(resp *comparison.Response) *Aggregate {
	if !resp.Final() {
		return nil
	}
	return &Aggregate{
		Condition:          resp.OverallCondition,
		Front:              fromMetrics(resp.Front),
		Back:               fromMetrics(resp.Back),
		CombinedSimilarity: copyFloat(resp.OverallSimilarity),
		CombinedSSI:        copyFloat(resp.OverallSSI),
	}
}

func fromMetrics(m *comparison.Metrics) *Metrics {
	if m == nil {
		return nil
	}
	return &Metrics{Similarity: m.Similarity, SSI: m.SSI}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Sections lays out the result screen. Absent groups are left out rather
// than rendered as placeholders.
func (a *Aggregate) Sections() []Section {
	if a == nil {
		return []Section{}
	}

	sections := []Section{{
		Title: "Overall Condition",
		Rows:  []Row{{Label: "Condition", Value: a.Condition}},
	}}

	if a.Front != nil {
		sections = append(sections, metricsSection("Front Image Analysis", a.Front))
	}
	if a.Back != nil {
		sections = append(sections, metricsSection("Back Image Analysis", a.Back))
	}

	var combined []Row
	if a.CombinedSimilarity != nil {
		combined = append(combined, Row{Label: "Combined Similarity Score", Value: formatScore(*a.CombinedSimilarity)})
	}
	if a.CombinedSSI != nil {
		combined = append(combined, Row{Label: "Combined Structural Similarity Index (SSI)", Value: formatScore(*a.CombinedSSI)})
	}
	if len(combined) > 0 {
		sections = append(sections, Section{Title: "Combined Results", Rows: combined})
	}

	return sections
}

// Clone returns a deep copy
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	c := &Aggregate{
		Condition:          a.Condition,
		CombinedSimilarity: copyFloat(a.CombinedSimilarity),
		CombinedSSI:        copyFloat(a.CombinedSSI),
	}
	if a.Front != nil {
		f := *a.Front
		c.Front = &f
	}
	if a.Back != nil {
		b := *a.Back
		c.Back = &b
	}
	return c
}

func metricsSection(title string, m *Metrics) Section {
	return Section{
		Title: title,
		Rows: []Row{
			{Label: "Similarity Score", Value: formatScore(m.Similarity)},
			{Label: "Structural Similarity Index (SSI)", Value: formatScore(m.SSI)},
		},
	}
}

// formatScore prints the value as the service sent it, without padding
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
