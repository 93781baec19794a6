// ABOUTME: Synthesize builds a degraded report from locally tracked agent states.
// ABOUTME: Used when neither the stream nor the report endpoints delivered a report.
package report

import (
	"github.com/2389-research/mdtview/workflow"
)

// SyntheticSummary is the summary text carried by synthesized reports.
const SyntheticSummary = "Report unavailable from the backend. This summary was synthesized from locally tracked agent states."

// Synthesize returns a minimal report for runID built from snap. The result is
// flagged Synthetic and its Markdown opens with SyntheticBanner.
func Synthesize(runID string, snap workflow.Snapshot) *Report {
	states := make([]any, 0, len(snap))
	for _, s := range snap {
		msg := s.Message
		if msg == "" {
			msg = "-"
		}
		states = append(states, NewObject().
			Set("agent", s.Agent.DisplayName).
			Set("status", s.State.String()).
			Set("message", msg))
	}

	obj := NewObject().
		Set(FieldPatientID, "unknown").
		Set("run_id", runID).
		Set("synthetic", true).
		Set("summary", SyntheticSummary).
		Set("agent_states", states)

	raw, _ := obj.MarshalJSON()
	return &Report{Raw: raw, Value: obj, Synthetic: true}
}
