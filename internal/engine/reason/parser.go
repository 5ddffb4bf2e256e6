package reason

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// basic safety limits to avoid pathological model outputs
const (
	maxContentLen    = 128 * 1024 // 128KB
	maxIntents       = 10
	maxConstraints   = 20
	maxEvidenceItems = 10
	maxErrSnippet    = 200
)

// rawDecomposition is the wire shape the reasoning service must return.
type rawDecomposition struct {
	Intents []struct {
		IntentCode  string   `json:"intent_code"`
		Confidence  float64  `json:"confidence"`
		Evidence    []string `json:"evidence"`
		Constraints []struct {
			Type        string `json:"type"`
			Description string `json:"description"`
			Value       string `json:"value"`
			Hard        bool   `json:"hard"`
		} `json:"constraints"`
	} `json:"intents"`
	IsCompound            bool   `json:"is_compound"`
	RequiresClarification bool   `json:"requires_clarification"`
	ClarificationQuestion string `json:"clarification_question"`
	Reasoning             string `json:"reasoning"`
}

// Decomposition is the validated output of the reasoning service.
type Decomposition struct {
	Intents               []model.ResolvedIntent
	Constraints           []model.Constraint
	IsCompound            bool
	RequiresClarification bool
	ClarificationQuestion string
	Reasoning             string

	// Degraded marks a fallback decomposition assembled from match
	// candidates after the reasoning service failed.
	Degraded       bool
	DegradedReason string
}

// ParseDecomposition validates the model's response against the strict
// decomposition schema. Any shape violation fails with ErrSchemaViolation
// carrying enough detail for a repair re-prompt.
func ParseDecomposition(content string) (out *Decomposition, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "decomposition_parser").Msgf("panic recovered: %v", r)
			err = fmt.Errorf("%w: parser panic", errx.ErrSchemaViolation)
			out = nil
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "decomposition_parser").
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}

	payload := extractJSONObject(content)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in response: %s",
			errx.ErrSchemaViolation, safeSnippet(content))
	}

	var raw rawDecomposition
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", errx.ErrSchemaViolation, err, safeSnippet(payload))
	}

	if len(raw.Intents) == 0 && !raw.RequiresClarification {
		return nil, fmt.Errorf("%w: empty intents without requires_clarification", errx.ErrSchemaViolation)
	}
	if len(raw.Intents) > maxIntents {
		return nil, fmt.Errorf("%w: too many intents (%d)", errx.ErrSchemaViolation, len(raw.Intents))
	}
	if raw.RequiresClarification && strings.TrimSpace(raw.ClarificationQuestion) == "" {
		return nil, fmt.Errorf("%w: requires_clarification without clarification_question", errx.ErrSchemaViolation)
	}

	out = &Decomposition{
		IsCompound:            raw.IsCompound,
		RequiresClarification: raw.RequiresClarification,
		ClarificationQuestion: strings.TrimSpace(raw.ClarificationQuestion),
		Reasoning:             strings.TrimSpace(raw.Reasoning),
	}

	for i, ri := range raw.Intents {
		code := strings.TrimSpace(ri.IntentCode)
		if code == "" || !utf8.ValidString(code) {
			return nil, fmt.Errorf("%w: intents[%d].intent_code invalid", errx.ErrSchemaViolation, i)
		}
		if !strings.Contains(code, ".") {
			return nil, fmt.Errorf("%w: intents[%d].intent_code %q not CATEGORY.INTENT", errx.ErrSchemaViolation, i, code)
		}
		if math.IsNaN(ri.Confidence) || ri.Confidence < 0 || ri.Confidence > 1 {
			return nil, fmt.Errorf("%w: intents[%d].confidence out of range", errx.ErrSchemaViolation, i)
		}

		evidence := ri.Evidence
		if len(evidence) > maxEvidenceItems {
			evidence = evidence[:maxEvidenceItems]
		}
		out.Intents = append(out.Intents, model.NewResolvedIntent(code, ri.Confidence, evidence...))

		if len(ri.Constraints) > maxConstraints {
			return nil, fmt.Errorf("%w: intents[%d] has too many constraints", errx.ErrSchemaViolation, i)
		}
		for j, rc := range ri.Constraints {
			ctype, ok := parseConstraintType(rc.Type)
			if !ok {
				return nil, fmt.Errorf("%w: intents[%d].constraints[%d].type %q unknown",
					errx.ErrSchemaViolation, i, j, rc.Type)
			}
			if strings.TrimSpace(rc.Description) == "" {
				return nil, fmt.Errorf("%w: intents[%d].constraints[%d].description empty",
					errx.ErrSchemaViolation, i, j)
			}
			out.Constraints = append(out.Constraints, model.Constraint{
				Type:        ctype,
				Description: strings.TrimSpace(rc.Description),
				Value:       strings.TrimSpace(rc.Value),
				Hard:        rc.Hard,
				IntentCode:  code,
			})
		}
	}

	return out, nil
}

func parseConstraintType(s string) (model.ConstraintType, bool) {
	switch model.ConstraintType(strings.ToLower(strings.TrimSpace(s))) {
	case model.ConstraintDeadline:
		return model.ConstraintDeadline, true
	case model.ConstraintPolicy:
		return model.ConstraintPolicy, true
	case model.ConstraintInventory:
		return model.ConstraintInventory, true
	case model.ConstraintPreference:
		return model.ConstraintPreference, true
	default:
		return "", false
	}
}

// extractJSONObject strips code fences and returns the outermost JSON
// object in the content, or "".
func extractJSONObject(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
