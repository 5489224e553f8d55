// Package contract turns raw classifier output into a ClassificationResult.
// Parse never fails: malformed output degrades to a heuristic result.
package contract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/mindcare-ai/mindcare/backend/internal/analysis/emotion"
	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
)

// DefaultReply is used whenever the classifier produced no usable reply.
const DefaultReply = "I'm here to listen."

// Outcome is the tagged result of validating raw classifier output.
// Valid is false when the text held no JSON object; Reason then explains why.
// A Valid outcome may still carry a Reason for fields that were defaulted.
type Outcome struct {
	Result wellbeing.ClassificationResult
	Valid  bool
	Reason string
}

// Validate checks raw against the {emotion, risk, reply} contract.
func Validate(raw string) Outcome {
	obj, reason := decodeObject(raw)
	if obj == nil {
		return Outcome{Reason: reason}
	}

	var notes []string
	result := wellbeing.ClassificationResult{
		Emotion: emotion.Neutral,
		Risk:    wellbeing.NewRiskSet(),
		Reply:   DefaultReply,
	}

	switch v := obj["emotion"].(type) {
	case string:
		if label, ok := emotion.ParseLabel(v); ok {
			result.Emotion = label
		} else {
			notes = append(notes, "unknown emotion "+quote(v))
		}
	case nil:
		notes = append(notes, "missing emotion")
	default:
		notes = append(notes, "emotion is not a string")
	}

	switch v := obj["reply"].(type) {
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result.Reply = trimmed
		} else {
			notes = append(notes, "empty reply")
		}
	case nil:
		notes = append(notes, "missing reply")
	default:
		notes = append(notes, "reply is not a string")
	}

	switch v := obj["risk"].(type) {
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			tags = append(tags, stringify(item))
		}
		result.Risk = wellbeing.NewRiskSet(tags...)
	case string:
		result.Risk = wellbeing.NewRiskSet(v)
	case nil:
	default:
		notes = append(notes, "risk is not an array")
	}

	return Outcome{Result: result, Valid: true, Reason: strings.Join(notes, "; ")}
}

// Parse returns the validated result, or the fallback for unusable output:
// the trimmed raw text as reply and a heuristic emotion guess.
func Parse(raw string) wellbeing.ClassificationResult {
	if outcome := Validate(raw); outcome.Valid {
		return outcome.Result
	}
	return Fallback(raw)
}

// Fallback builds the degraded result for raw text that is not a JSON object.
func Fallback(raw string) wellbeing.ClassificationResult {
	reply := strings.TrimSpace(raw)
	if reply == "" {
		reply = DefaultReply
	}
	return wellbeing.ClassificationResult{
		Emotion: emotion.Guess(raw),
		Risk:    wellbeing.NewRiskSet(),
		Reply:   reply,
	}
}

// decodeObject tries the trimmed text, then the body of a Markdown code
// fence, then the outermost {...} span.
func decodeObject(raw string) (map[string]any, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, "empty output"
	}

	candidates := []string{trimmed}
	if fenced, ok := stripFence(trimmed); ok {
		candidates = append(candidates, fenced)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		candidates = append(candidates, trimmed[start:end+1])
	}

	reason := "no json object found"
	for _, candidate := range candidates {
		var value any
		dec := json.NewDecoder(strings.NewReader(candidate))
		if err := dec.Decode(&value); err != nil {
			reason = "invalid json: " + err.Error()
			continue
		}
		if dec.More() {
			reason = "trailing data after json value"
			continue
		}
		obj, ok := value.(map[string]any)
		if !ok {
			reason = "json value is not an object"
			continue
		}
		return obj, ""
	}
	return nil, reason
}

func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return "", false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	// drop an info string such as "json"
	if idx := strings.IndexByte(body, '\n'); idx != -1 {
		if info := strings.TrimSpace(body[:idx]); !strings.ContainsAny(info, "{[") {
			body = body[idx+1:]
		}
	}
	return strings.TrimSpace(body), true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
