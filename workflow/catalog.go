// ABOUTME: Static catalog of MDT agents (coordinator, domain specialists, summary) and agent id normalization.
// ABOUTME: NormalizeAgentID folds the many backend spellings ("EHR_Agent", "guidelines-agent") onto catalog keys.
package workflow

import "strings"

// Agent describes one node of the MDT workflow.
type Agent struct {
	Key         string
	DisplayName string
	Icon        string
}

// Catalog keys.
const (
	Coordinator = "coordinator"
	EHR         = "ehr"
	Imaging     = "imaging"
	Pathology   = "pathology"
	Guideline   = "guideline"
	Specialist  = "specialist"
	Evaluation  = "evaluation"
	Summary     = "summary"
)

var catalog = []Agent{
	{Key: Coordinator, DisplayName: "Coordinator", Icon: "🧭"},
	{Key: EHR, DisplayName: "EHR Agent", Icon: "📋"},
	{Key: Imaging, DisplayName: "Imaging Agent", Icon: "🩻"},
	{Key: Pathology, DisplayName: "Pathology Agent", Icon: "🔬"},
	{Key: Guideline, DisplayName: "Guideline Agent", Icon: "📚"},
	{Key: Specialist, DisplayName: "Specialist Agent", Icon: "🩺"},
	{Key: Evaluation, DisplayName: "Evaluation Agent", Icon: "✅"},
	{Key: Summary, DisplayName: "Summary Agent", Icon: "📝"},
}

// DomainAgents are the agents the coordinator fans out to; each one feeds the summary.
var DomainAgents = []string{EHR, Imaging, Pathology, Guideline, Specialist, Evaluation}

// Catalog returns the agents in display order. The slice is a copy.
func Catalog() []Agent {
	out := make([]Agent, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for a normalized key.
func Lookup(key string) (Agent, bool) {
	for _, a := range catalog {
		if a.Key == key {
			return a, true
		}
	}
	return Agent{}, false
}

var (
	idPrefixes = []string{"agent_", "mdt_"}
	idSuffixes = []string{"_agent", "_node", "_service"}
	idAliases  = map[string]string{
		"ehr_analysis":     EHR,
		"guidelines":       Guideline,
		"specialists":      Specialist,
		"evaluator":        Evaluation,
		"summarizer":       Summary,
		"summary_report":   Summary,
		"coordinator_main": Coordinator,
		"mdt":              Coordinator,
		"orchestrator":     Coordinator,
	}
	separators = strings.NewReplacer("-", "_", " ", "_", ".", "_")
)

// NormalizeAgentID case-folds a backend agent id, canonicalizes separators,
// strips known prefixes and suffixes and resolves aliases. ok is false when the
// result is not a catalog key.
func NormalizeAgentID(raw string) (string, bool) {
	id := separators.Replace(strings.ToLower(strings.TrimSpace(raw)))
	for strings.Contains(id, "__") {
		id = strings.ReplaceAll(id, "__", "_")
	}
	id = strings.Trim(id, "_")
	if id == "" {
		return "", false
	}

	if _, ok := Lookup(id); ok {
		return id, true
	}
	if alias, ok := idAliases[id]; ok {
		return alias, true
	}

	for _, p := range idPrefixes {
		id = strings.TrimPrefix(id, p)
	}
	for _, s := range idSuffixes {
		id = strings.TrimSuffix(id, s)
	}
	if alias, ok := idAliases[id]; ok {
		id = alias
	}
	if _, ok := Lookup(id); ok {
		return id, true
	}
	return id, false
}
