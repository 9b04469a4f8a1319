// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package narrative

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tejzpr/dermtrack/internal/progress"
)

// Disclaimer closes every generated assessment
const Disclaimer = "Note: This is an automated educational analysis. Please consult a certified dermatologist for a precise diagnosis and treatment plan."

const systemInstruction = "You are a dermatology assistant reviewing a patient's progress photos for one skin condition. " +
	"Write a professional, empathetic progress assessment using only the data provided."

const timeLayout = "2006-01-02 15:04"

// BuildPrompt renders a report as the context for narrative generation.
// Relative times are measured from the latest capture.
func BuildPrompt(r *progress.Report) string {
	var b strings.Builder

	name := r.SectionName
	if name == "" {
		name = r.SectionID
	}

	fmt.Fprintf(&b, "Lesion/Section: %s\n", name)
	fmt.Fprintf(&b, "Current analysis date: %s\n\n", r.LatestCapturedAt.UTC().Format(timeLayout))

	b.WriteString("CURRENT FINDINGS\n")
	if len(r.LatestPredictions) == 0 {
		b.WriteString("  - no predictions supplied\n")
	}
	for _, p := range r.LatestPredictions {
		fmt.Fprintf(&b, "  - %s: %.1f%% confidence\n", p.Label, p.Confidence*100)
	}
	notes := r.LatestAnnotation
	if notes == "" {
		notes = "None provided"
	}
	fmt.Fprintf(&b, "Patient notes: %s\n\n", notes)

	b.WriteString("HISTORY\n")
	if r.BaselineCapturedAt != nil {
		fmt.Fprintf(&b, "Baseline photo taken %s (%s)\n",
			r.BaselineCapturedAt.UTC().Format(timeLayout),
			humanize.RelTime(*r.BaselineCapturedAt, r.LatestCapturedAt, "earlier", "later"))
	}
	fmt.Fprintf(&b, "Earlier entries compared: %d\n", r.PriorCount)
	for i, c := range r.Comparisons {
		label := c.PriorTopLabel
		if label == "" {
			label = "Unknown"
		}
		marker := ""
		if c.PriorIsBaseline {
			marker = " [baseline]"
		}
		fmt.Fprintf(&b, "%d. %s (%s)%s: %s, healing score %.1f%%, similarity %.2f\n",
			i+1,
			c.PriorCapturedAt.UTC().Format(timeLayout),
			humanize.RelTime(c.PriorCapturedAt, r.LatestCapturedAt, "earlier", "later"),
			marker,
			label,
			c.HealingScore,
			c.Similarity)
	}
	b.WriteString("\n")

	b.WriteString("PROGRESS ANALYSIS\n")
	fmt.Fprintf(&b, "Overall trend: %s\n", strings.ToUpper(string(r.Trend)))
	fmt.Fprintf(&b, "Average healing score: %.1f%%\n\n", r.AverageHealingScore)

	b.WriteString("INSTRUCTIONS\n")
	fmt.Fprintf(&b, "Write a progress assessment titled \"PROGRESS ASSESSMENT - %s\" with these parts:\n", strings.ToUpper(name))
	b.WriteString("Current Condition, Comparison with Previous Entries, Healing Progress, ")
	b.WriteString("Clinical Observations (2-3 points), Recommendations (3 items), Next Steps.\n")
	b.WriteString("The healing score measures visual similarity between photos, not clinical recovery. Say so where relevant.\n")
	fmt.Fprintf(&b, "End with: %s\n", Disclaimer)

	return b.String()
}
