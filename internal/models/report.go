package models

// Report is the model completion partitioned into the two result panes.
type Report struct {
	Summary    string `json:"summary"`
	Details    string `json:"details"`
	HasDetails bool   `json:"has_details"`
	Raw        string `json:"-"`
}
