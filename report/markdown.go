// ABOUTME: Converts a decoded MDT report into a Markdown narrative.
// ABOUTME: Uses the backend's pre-rendered narrative when present, otherwise derives sections from well-known fields.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// sectionOrder lists the well-known report fields rendered first, in this order.
var sectionOrder = []string{
	"summary",
	"ehr_analysis",
	"imaging_analysis",
	"pathology_analysis",
	"guideline_recommendations",
	"specialist_assessment",
	"recommendations",
	"assessment",
	"treatment_options",
	"evaluation_score",
	"evaluation_comments",
	"evaluation_formatted",
}

// hiddenFields never get their own section.
var hiddenFields = map[string]bool{
	FieldMarkdownSummary: true,
	FieldMarkdownContent: true,
	FieldPatientID:       true,
	"timestamp":          true,
	"run_id":             true,
	"synthetic":          true,
}

const maxHeadingLevel = 6

// SyntheticBanner opens every locally synthesized report.
const SyntheticBanner = "> ⚠ **Synthetic report (incomplete).** The backend report could not be retrieved; " +
	"this summary was built from locally tracked agent states."

// ToMarkdown renders r as Markdown. The same report always yields the same text.
func ToMarkdown(r *Report) string {
	if r == nil {
		return ""
	}
	if md, ok := r.Narrative(); ok {
		return md
	}

	var b strings.Builder
	patient := r.PatientID()
	if patient == "" {
		patient = "Unknown"
	}
	fmt.Fprintf(&b, "# MDT Report for Patient %s\n\n", patient)

	if r.Synthetic {
		b.WriteString(SyntheticBanner)
		b.WriteString("\n\n")
		if v, ok := r.Fields().Get("run_id"); ok {
			fmt.Fprintf(&b, "Run: `%s`\n\n", scalarText(v))
		}
	}

	obj := r.Fields()
	if obj == nil {
		// Not an object: show whatever it is under a single section.
		b.WriteString("## Report\n\n")
		writeValue(&b, r.Value, 2)
		return strings.TrimRight(b.String(), "\n") + "\n"
	}

	seen := make(map[string]bool, len(obj.Keys))
	for _, key := range sectionOrder {
		if v, ok := obj.Get(key); ok {
			writeSection(&b, key, v)
			seen[key] = true
		}
	}
	for _, key := range obj.Keys {
		if seen[key] || hiddenFields[key] {
			continue
		}
		writeSection(&b, key, obj.Values[key])
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSection(b *strings.Builder, key string, v any) {
	writeHeading(b, 2, Heading(key))
	writeValue(b, v, 2)
}

func writeHeading(b *strings.Builder, level int, text string) {
	if level > maxHeadingLevel {
		level = maxHeadingLevel
	}
	fmt.Fprintf(b, "%s %s\n\n", strings.Repeat("#", level), text)
}

// writeValue renders v below a heading of the given level.
func writeValue(b *strings.Builder, v any, level int) {
	switch val := v.(type) {
	case *Object:
		if len(val.Keys) == 0 {
			b.WriteString("_None_\n\n")
			return
		}
		for _, k := range val.Keys {
			child := val.Values[k]
			if isScalar(child) {
				fmt.Fprintf(b, "- **%s**: %s\n", Heading(k), scalarText(child))
				continue
			}
			b.WriteString("\n")
			writeHeading(b, level+1, Heading(k))
			writeValue(b, child, level+1)
		}
		b.WriteString("\n")
	case []any:
		if len(val) == 0 {
			b.WriteString("_None_\n\n")
			return
		}
		if allObjects(val) {
			writeTable(b, val)
			return
		}
		for _, item := range val {
			if isScalar(item) {
				fmt.Fprintf(b, "- %s\n", scalarText(item))
			} else {
				fmt.Fprintf(b, "- `%s`\n", compactJSON(item))
			}
		}
		b.WriteString("\n")
	default:
		b.WriteString(scalarText(val))
		b.WriteString("\n\n")
	}
}

// writeTable renders an array of objects. The header comes from the first
// element's keys; cells missing from later rows read "N/A".
func writeTable(b *strings.Builder, rows []any) {
	first := rows[0].(*Object)
	if len(first.Keys) == 0 {
		b.WriteString("_None_\n\n")
		return
	}

	headers := make([]string, len(first.Keys))
	for i, k := range first.Keys {
		headers[i] = Heading(k)
	}
	fmt.Fprintf(b, "| %s |\n", strings.Join(headers, " | "))
	fmt.Fprintf(b, "|%s\n", strings.Repeat(" --- |", len(headers)))

	for _, row := range rows {
		obj := row.(*Object)
		cells := make([]string, len(first.Keys))
		for i, k := range first.Keys {
			v, ok := obj.Get(k)
			if !ok || v == nil {
				cells[i] = "N/A"
				continue
			}
			cells[i] = tableCell(v)
		}
		fmt.Fprintf(b, "| %s |\n", strings.Join(cells, " | "))
	}
	b.WriteString("\n")
}

func tableCell(v any) string {
	s := scalarText(v)
	if !isScalar(v) {
		s = compactJSON(v)
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

func allObjects(items []any) bool {
	for _, it := range items {
		if _, ok := it.(*Object); !ok {
			return false
		}
	}
	return true
}

func isScalar(v any) bool {
	switch v.(type) {
	case *Object, []any:
		return false
	default:
		return true
	}
}

func scalarText(v any) string {
	switch val := v.(type) {
	case nil:
		return "N/A"
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case *Object, []any:
		return compactJSON(val)
	default:
		return fmt.Sprint(val)
	}
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Heading converts a field name to a heading: split on underscores and
// lower-to-upper case boundaries, capitalize each word.
//
//	ehr_analysis     -> Ehr Analysis
//	treatmentOptions -> Treatment Options
func Heading(field string) string {
	var words []string
	for _, part := range strings.FieldsFunc(field, func(r rune) bool { return r == '_' || r == ' ' || r == '-' }) {
		words = append(words, splitCamel(part)...)
	}
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func splitCamel(s string) []string {
	var words []string
	var cur []rune
	var prev rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			words = append(words, string(cur))
			cur = nil
		}
		cur = append(cur, r)
		prev = r
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}
