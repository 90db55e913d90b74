// Package evaluation recovers typed evaluation records from free-form model
// output. Models are asked for bare JSON but routinely wrap it in prose or
// markdown fences; extraction tolerates that and degrades to a lossy record
// instead of failing, so an interview never halts on unparseable output.
package evaluation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

const (
	rawPreviewLimit = 300

	minScore = 0
	maxScore = 10

	maxPercent = 100
)

// Record is the structured outcome of scoring one answer.
type Record struct {
	Score           int      `json:"score"`
	Feedback        string   `json:"feedback"`
	Recommendations []string `json:"recommendations"`
}

// Report is the consolidated end-of-interview summary. Raw carries the
// unparsed model output when extraction failed.
type Report struct {
	Strengths       []string `json:"strengths,omitempty"`
	Weaknesses      []string `json:"weaknesses,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Raw             string   `json:"raw,omitempty"`
}

// ParseRecord extracts a Record from raw model output. It never fails: any
// parse problem yields a degraded record with score 0 and a preview of the
// raw text preserved for diagnosis.
func ParseRecord(raw string) Record {
	obj, err := extractObject(raw)
	if err != nil {
		return Record{
			Score:           0,
			Feedback:        "Could not parse evaluation. Raw: " + preview(raw),
			Recommendations: []string{"Retry evaluation"},
		}
	}

	return Record{
		Score:           clampScore(coerceInt(obj["score"])),
		Feedback:        coerceString(obj["feedback"]),
		Recommendations: coerceStringSlice(obj["recommendations"]),
	}
}

// Match is the resume-vs-job-description fit assessment. Raw carries the
// unparsed model output when extraction failed.
type Match struct {
	MatchPercent int      `json:"match_percent"`
	Strengths    []string `json:"strengths,omitempty"`
	Gaps         []string `json:"gaps,omitempty"`
	Raw          string   `json:"raw,omitempty"`
}

// ParseMatch extracts a Match from raw model output. On failure it returns a
// zero-percent match carrying only the raw text.
func ParseMatch(raw string) Match {
	obj, err := extractObject(raw)
	if err != nil {
		return Match{Raw: raw}
	}

	return Match{
		MatchPercent: clampPercent(coerceInt(obj["match_percent"])),
		Strengths:    coerceStringSlice(obj["strengths"]),
		Gaps:         coerceStringSlice(obj["gaps"]),
	}
}

// ParseReport extracts a Report from raw model output. On failure it returns
// a report carrying only the raw text rather than failing the caller.
func ParseReport(raw string) Report {
	obj, err := extractObject(raw)
	if err != nil {
		return Report{Raw: raw}
	}

	return Report{
		Strengths:       coerceStringSlice(obj["strengths"]),
		Weaknesses:      coerceStringSlice(obj["weaknesses"]),
		Recommendations: coerceStringSlice(obj["recommendations"]),
	}
}

// extractObject locates the first '{' through the last '}' in the text and
// parses that substring as a JSON object. Without braces the whole text is
// tried. A repair pass covers trailing commas, single quotes and similar
// model artifacts before giving up.
func extractObject(raw string) (map[string]any, error) {
	candidate := strings.TrimSpace(raw)
	if start := strings.Index(candidate, "{"); start != -1 {
		if end := strings.LastIndex(candidate, "}"); end > start {
			candidate = candidate[start : end+1]
		}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
		return obj, nil
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, fmt.Errorf("repair model output: %w", err)
	}

	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	return obj, nil
}

func preview(raw string) string {
	runes := []rune(raw)
	if len(runes) <= rawPreviewLimit {
		return raw
	}
	return string(runes[:rawPreviewLimit])
}

func clampScore(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > maxPercent {
		return maxPercent
	}
	return percent
}

func coerceInt(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0
		}
		return int(f)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0
		}
		return int(f)
	default:
		return 0
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			result = append(result, s)
		}
	}
	return result
}
