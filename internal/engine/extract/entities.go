package extract

import (
	"regexp"
	"strings"

	"github.com/intentcore/server/internal/engine/model"
)

// Regex patterns per entity type. The first capturing group, when present,
// is the entity value; the whole match is the raw span.
var entityPatterns = map[model.EntityType][]*regexp.Regexp{
	model.EntityOrderID: {
		regexp.MustCompile(`(?i)#?\b(ORD[-_]?\d{4,10})\b`),
		regexp.MustCompile(`(?i)#?\b(ORDER[-_]?\d{4,10})\b`),
		regexp.MustCompile(`(?i)\border(?:er)?\s*(?:number|#|id)?[:\s]*#?(\d{4,10})\b`),
		regexp.MustCompile(`#(\d{4,10})\b`),
	},
	model.EntityTrackingNumber: {
		// USPS: 20-22 digits or two letters + 9 digits + two letters
		regexp.MustCompile(`\b(\d{20,22})\b`),
		regexp.MustCompile(`\b([A-Z]{2}\d{9}[A-Z]{2})\b`),
		// UPS: 1Z followed by 16 alphanumeric
		regexp.MustCompile(`(?i)\b(1Z[A-Z0-9]{16})\b`),
		// FedEx: 12-15 digits after a tracking keyword
		regexp.MustCompile(`(?i)\btracking[:\s#]*(\d{12,15})\b`),
	},
	model.EntityProductSKU: {
		regexp.MustCompile(`(?i)\bsku[:\s#]*([A-Z0-9]{4,12})\b`),
		regexp.MustCompile(`(?i)\bitem[:\s#]*([A-Z0-9]{4,12})\b`),
	},
	model.EntitySize: {
		regexp.MustCompile(`(?i)\bsize[:\s]*(XXS|XS|S|M|L|XL|XXL|XXXL|\d{1,2})\b`),
		regexp.MustCompile(`(?i)\b(small|medium|large|extra\s*large)\b`),
	},
	model.EntityColor: {
		regexp.MustCompile(`(?i)\b(red|blue|green|yellow|black|white|pink|purple|orange|brown|gray|grey|navy|beige|tan|gold|silver)\b`),
	},
	model.EntityQuantity: {
		regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:items?|pieces?|units?|qty)\b`),
		regexp.MustCompile(`(?i)\bqty[:\s]*(\d{1,3})\b`),
	},
	model.EntityMoneyAmount: {
		regexp.MustCompile(`\$(\d+(?:\.\d{2})?)\b`),
		regexp.MustCompile(`(?i)\b(\d+(?:\.\d{2})?)\s*(?:dollars|usd)\b`),
	},
	model.EntityEmail: {
		regexp.MustCompile(`\b([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})\b`),
	},
	model.EntityPhone: {
		regexp.MustCompile(`\b(\+?1?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4})\b`),
	},
}

// Deadline keywords. Values stay as matched text; downstream parsing of
// relative dates happens in the constraint solver.
var deadlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bby\s+(friday|saturday|sunday|monday|tuesday|wednesday|thursday)\b`),
	regexp.MustCompile(`(?i)\bwithin\s+(\d+)\s*(?:days?|hours?|weeks?)\b`),
	regexp.MustCompile(`(?i)\bbefore\s+(\w+\s+\d{1,2}(?:st|nd|rd|th)?(?:\s*,?\s*\d{4})?)\b`),
	regexp.MustCompile(`(?i)\bneed(?:ed)?\s+(?:it\s+)?by\s+(\w+)\b`),
	regexp.MustCompile(`(?i)\b(urgent|asap|immediately|rush)\b`),
}

// Return/complaint reason keywords.
var reasonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(damaged|broken|defective|wrong|incorrect|missing|late)\b`),
	regexp.MustCompile(`(?i)\b(doesn't fit|too small|too large|wrong size|wrong color)\b`),
	regexp.MustCompile(`(?i)\b(changed my mind|no longer need|found cheaper|duplicate order)\b`),
	regexp.MustCompile(`(?i)\b(not as described|fake|counterfeit|poor quality)\b`),
}

const (
	regexConfidence    = 0.95
	deadlineConfidence = 0.70
	reasonConfidence   = 0.90
)

// Entities extracts all typed spans from the text, deduplicated by
// (type, lowercase value) keeping the highest confidence occurrence.
func Entities(text string) []model.Entity {
	var entities []model.Entity

	for entityType, patterns := range entityPatterns {
		for _, pattern := range patterns {
			entities = append(entities, matchAll(text, pattern, entityType, regexConfidence)...)
		}
	}

	for _, pattern := range deadlinePatterns {
		entities = append(entities, matchAll(text, pattern, model.EntityDeadline, deadlineConfidence)...)
	}

	for _, pattern := range reasonPatterns {
		for _, e := range matchAll(text, pattern, model.EntityReason, reasonConfidence) {
			e.Value = strings.ToLower(e.Value)
			entities = append(entities, e)
		}
	}

	return dedupeEntities(entities)
}

func matchAll(text string, pattern *regexp.Regexp, t model.EntityType, confidence float64) []model.Entity {
	var out []model.Entity
	for _, idx := range pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := idx[0], idx[1]
		valStart, valEnd := start, end
		if len(idx) >= 4 && idx[2] >= 0 {
			valStart, valEnd = idx[2], idx[3]
		}
		out = append(out, model.Entity{
			Type:       t,
			Value:      strings.TrimSpace(text[valStart:valEnd]),
			RawSpan:    text[start:end],
			Start:      start,
			End:        end,
			Confidence: confidence,
		})
	}
	return out
}

func dedupeEntities(entities []model.Entity) []model.Entity {
	type key struct {
		t model.EntityType
		v string
	}
	seen := make(map[key]int, len(entities))
	out := make([]model.Entity, 0, len(entities))

	for _, e := range entities {
		k := key{e.Type, strings.ToLower(e.Value)}
		if i, ok := seen[k]; ok {
			if e.Confidence > out[i].Confidence {
				out[i] = e
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, e)
	}
	return out
}
