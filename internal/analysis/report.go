package analysis

import (
	"strings"

	"vidgenius/internal/models"
)

const (
	// DetailsMarker separates the executive summary from the detailed breakdown.
	DetailsMarker = "## Detailed Analysis"
	// MissingDetails is shown in the details pane when the marker is absent.
	MissingDetails = "Detailed analysis not found."
)

// Split partitions a completion at the first DetailsMarker. With the marker
// present, Summary+Details reproduces text exactly.
func Split(text string) models.Report {
	before, after, found := strings.Cut(text, DetailsMarker)
	if !found {
		return models.Report{Summary: text, Details: MissingDetails, Raw: text}
	}
	return models.Report{
		Summary:    before,
		Details:    DetailsMarker + after,
		HasDetails: true,
		Raw:        text,
	}
}
