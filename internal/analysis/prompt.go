package analysis

import "fmt"

const editRequestTemplate = `As a professional video editor, analyze this video and provide:
1. Detailed timeline segmentation
2. Redundancy analysis with timestamps
3. Key narrative moments to enhance
4. Technical recommendations (cuts, transitions, aspect ratios)

Start with a short executive summary, then put the full breakdown under the Markdown heading "%s".

User goals: %s
`

// BuildPrompt renders the editing instruction with the user's goal inserted verbatim.
func BuildPrompt(goal string) string {
	return fmt.Sprintf(editRequestTemplate, DetailsMarker, goal)
}
