// ABOUTME: Builds the scripted event sequence and report document a mock MDT run emits.
// ABOUTME: Status updates walk the coordinator, each domain agent and the summary agent, then deliver the report.
package mock

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/report"
	"github.com/2389-research/mdtview/workflow"
)

// Wire agent ids, in the spellings the backend uses.
var agentIDs = map[string]string{
	workflow.Coordinator: "coordinator",
	workflow.EHR:         "EHR_Agent",
	workflow.Imaging:     "imaging_agent",
	workflow.Pathology:   "pathology-agent",
	workflow.Guideline:   "guidelines",
	workflow.Specialist:  "specialist_agent",
	workflow.Evaluation:  "evaluation_agent",
	workflow.Summary:     "summary_agent",
}

// frame is one SSE event the mock writes.
type frame struct {
	ID    int
	Event string
	Data  []byte
}

// Format renders the frame in text/event-stream framing.
func (f frame) Format() string {
	return "id: " + strconv.Itoa(f.ID) + "\nevent: " + f.Event + "\ndata: " + string(f.Data) + "\n\n"
}

// BuildReport returns the report document for a run.
func BuildReport(patientID string) *report.Object {
	rec := func(category, text string, priority string) *report.Object {
		return report.NewObject().
			Set("category", category).
			Set("recommendation", text).
			Set("priority", priority)
	}
	return report.NewObject().
		Set("patient_id", patientID).
		Set("summary", "Multidisciplinary review completed for patient "+patientID+".").
		Set("ehr_analysis", report.NewObject().
			Set("history", "Stage II adenocarcinoma, prior cholecystectomy.").
			Set("comorbidities", []any{"hypertension", "type 2 diabetes"})).
		Set("imaging_analysis", report.NewObject().
			Set("findings", "3.2 cm mass, no distant metastasis.").
			Set("modality", "CT chest/abdomen/pelvis")).
		Set("pathology_analysis", report.NewObject().
			Set("histology", "Moderately differentiated adenocarcinoma").
			Set("margins", "Negative")).
		Set("recommendations", []any{
			rec("Surgery", "Proceed with resection", "high"),
			rec("Oncology", "Adjuvant chemotherapy | discuss FOLFOX", "medium"),
		}).
		Set("evaluation_score", json.Number("8.5")).
		Set("evaluation_comments", "Recommendations are consistent with current guidelines.")
}

// buildScript returns the full event sequence for a run.
func buildScript(runID string, doc []byte, opts Options) []frame {
	var frames []frame
	add := func(event string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("mock: marshal %s: %v", event, err))
		}
		frames = append(frames, frame{ID: len(frames) + 1, Event: event, Data: data})
	}
	status := func(key, token, message string) {
		add(client.EventStatusUpdate, client.StatusUpdate{
			AgentID: agentIDs[key],
			Status:  token,
			Message: message,
			RunID:   runID,
			EventID: int64(len(frames) + 1),
		})
	}

	status(workflow.Coordinator, "ACTIVE", "Coordinating MDT review")
	for _, key := range workflow.DomainAgents {
		status(key, "ACTIVE", "Analyzing case")
		status(key, "DONE", "Analysis complete")
	}
	status(workflow.Summary, "ACTIVE", "Drafting summary")
	status(workflow.Summary, "DONE", "Summary ready")
	status(workflow.Coordinator, "DONE", "MDT Simulation Finished")

	if !opts.NoStreamReport {
		if opts.Chunks > 0 {
			parts := split(string(doc), opts.Chunks)
			add(client.EventReportMetadata, client.ReportMetadata{Chunks: len(parts)})
			for i, p := range parts {
				add(client.EventReportChunk, client.ReportChunk{Index: i, Total: len(parts), Data: p})
			}
		} else {
			frames = append(frames, frame{ID: len(frames) + 1, Event: client.EventReport, Data: doc})
		}
	}

	add(client.EventComplete, map[string]string{"run_id": runID, "status": "complete"})
	return frames
}

// split cuts s into at most n non-empty pieces.
func split(s string, n int) []string {
	if n > len(s) {
		n = len(s)
	}
	if n <= 1 {
		return []string{s}
	}
	size := (len(s) + n - 1) / n
	var out []string
	for start := 0; start < len(s); start += size {
		end := start + size
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[start:end])
	}
	return out
}
