package extract

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/intentcore/server/internal/engine/model"
)

type scoredPattern struct {
	re    *regexp.Regexp
	score float64
}

// Urgency indicators: the strongest single match wins.
var urgencyPatterns = []scoredPattern{
	{regexp.MustCompile(`(?i)\bASAP\b`), 0.9},
	{regexp.MustCompile(`(?i)\burgent(ly)?\b`), 0.9},
	{regexp.MustCompile(`(?i)\bimmediately\b`), 0.85},
	{regexp.MustCompile(`(?i)\bright now\b`), 0.8},
	{regexp.MustCompile(`(?i)\btoday\b`), 0.6},
	{regexp.MustCompile(`(?i)\bby (monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`), 0.7},
	{regexp.MustCompile(`(?i)\bby (tomorrow|tonight|this morning|this afternoon|this evening)\b`), 0.8},
	{regexp.MustCompile(`(?i)\bwithin (\d+) (hour|day)s?\b`), 0.7},
	{regexp.MustCompile(`(?i)\bI need (this|it) (now|today|soon)\b`), 0.75},
	{regexp.MustCompile(`(?i)\btime.?sensitive\b`), 0.85},
	{regexp.MustCompile(`(?i)\bemergency\b`), 0.95},
	{regexp.MustCompile(`(?i)\bcritical\b`), 0.8},
	{regexp.MustCompile(`(?i)\bcan't wait\b`), 0.75},
	{regexp.MustCompile(`(?i)\bdeadline\b`), 0.7},
	{regexp.MustCompile(`(?i)\bexpedite\b`), 0.8},
	{regexp.MustCompile(`(?i)\brush\b`), 0.7},
	{regexp.MustCompile(`(?i)\bpriority\b`), 0.65},
}

// Frustration indicators: strongest match weighted with the average of all.
var frustrationPatterns = []scoredPattern{
	{regexp.MustCompile(`(?i)\bthis is (ridiculous|unacceptable|outrageous|absurd)\b`), 0.95},
	{regexp.MustCompile(`(?i)\bworst (experience|service|company)\b`), 0.95},
	{regexp.MustCompile(`(?i)\b(horrible|terrible|awful) (experience|service)\b`), 0.9},
	{regexp.MustCompile(`(?i)\bI('m| am) (so )?(angry|furious|livid|fed up|done)\b`), 0.9},
	{regexp.MustCompile(`(?i)\bnever (ordering|buying|shopping) (here |from you )?again\b`), 0.95},
	{regexp.MustCompile(`(?i)\b(scam|fraud|steal|stolen|rip.?off)\b`), 0.9},
	{regexp.MustCompile(`(?i)\bwaste of (time|money)\b`), 0.85},
	{regexp.MustCompile(`(?i)\bno (one|body) (is )?respond(s|ing|ed)?\b`), 0.8},
	{regexp.MustCompile(`(?i)\bstill (waiting|no response|nothing)\b`), 0.7},
	{regexp.MustCompile(`(?i)\bthis is the (\d+)(st|nd|rd|th) time\b`), 0.8},
	{regexp.MustCompile(`(?i)\b(very |really |extremely )?disappointed\b`), 0.7},
	{regexp.MustCompile(`(?i)\b(very |really |extremely )?frustrated\b`), 0.8},
	{regexp.MustCompile(`(?i)\b(very |really |extremely )?upset\b`), 0.75},
	{regexp.MustCompile(`(?i)\bfed up\b`), 0.8},
	{regexp.MustCompile(`(?i)\bsick (and tired|of this)\b`), 0.85},
	{regexp.MustCompile(`(?i)\bnot (happy|satisfied|pleased)\b`), 0.55},
	{regexp.MustCompile(`(?i)\bannoyed\b`), 0.5},
	{regexp.MustCompile(`(?i)\btired of\b`), 0.55},
}

// Escalation phrases boost frustration and feed handoff logic.
var escalationPatterns = []scoredPattern{
	{regexp.MustCompile(`(?i)\bspeak (to|with) (a |your )?(manager|supervisor)\b`), 0.8},
	{regexp.MustCompile(`(?i)\bescalate\b`), 0.85},
	{regexp.MustCompile(`(?i)\bsomeone (else|in charge)\b`), 0.65},
	{regexp.MustCompile(`(?i)\breal (person|human)\b`), 0.6},
	{regexp.MustCompile(`(?i)\bcancel(ling|ing)? (my )?(account|subscription|membership)\b`), 0.7},
}

// Positive indicators reduce frustration (negative adjustments, capped).
var positivePatterns = []scoredPattern{
	{regexp.MustCompile(`(?i)\bthank(s| you)\b`), -0.2},
	{regexp.MustCompile(`(?i)\bappreciate\b`), -0.2},
	{regexp.MustCompile(`(?i)\bplease\b`), -0.1},
	{regexp.MustCompile(`(?i)\bhelp(ful|ed)\b`), -0.1},
}

var negativeWords = []string{
	"bad", "terrible", "horrible", "awful", "worst", "hate", "angry",
	"disappointed", "frustrated", "upset", "annoyed", "problem", "issue",
	"broken", "damaged", "wrong", "missing", "late", "slow", "never",
}

var positiveWords = []string{
	"good", "great", "excellent", "wonderful", "love", "happy", "satisfied",
	"thank", "thanks", "appreciate", "helpful", "perfect", "amazing",
}

const priorityThreshold = 0.7

// Sentiment scores the text with rule tables: word-count sentiment in
// [-1,1], max-match urgency, weighted frustration with escalation and
// caps-lock boosts, and a priority flag for queue routing.
func Sentiment(text string) model.SentimentScores {
	var signals []string
	lower := strings.ToLower(text)

	sentiment := ruleSentiment(lower)
	if sentiment < 0 {
		signals = append(signals, fmt.Sprintf("negative_sentiment:%.2f", sentiment))
	}

	urgency := 0.0
	for _, p := range urgencyPatterns {
		if p.re.MatchString(text) && p.score > urgency {
			urgency = p.score
			signals = append(signals, "urgency:"+truncate(p.re.String(), 24))
		}
	}

	var frustrationScores []float64
	for _, p := range frustrationPatterns {
		if m := p.re.FindString(text); m != "" {
			frustrationScores = append(frustrationScores, p.score)
			signals = append(signals, "frustration:"+truncate(strings.ToLower(m), 30))
		}
	}
	frustration := combineFrustration(frustrationScores)

	escalation := 0.0
	for _, p := range escalationPatterns {
		if p.re.MatchString(text) && p.score > escalation {
			escalation = p.score
			signals = append(signals, "escalation:"+truncate(p.re.String(), 28))
		}
	}
	frustration = clamp01(frustration + escalation*0.3)

	// Strong negative sentiment feeds back into frustration.
	if sentiment < -0.3 {
		frustration = clamp01(frustration + (-sentiment)*0.2)
	}

	// Caps-lock shouting.
	if capsRatio(text) > 0.3 && len(text) > 20 {
		frustration = clamp01(frustration + 0.2)
		signals = append(signals, "excessive_caps")
	}

	adjustment := 0.0
	for _, p := range positivePatterns {
		if p.re.MatchString(text) {
			adjustment += p.score
		}
	}
	if adjustment < -0.4 {
		adjustment = -0.4
	}
	frustration = clamp01(frustration + adjustment)

	priority := frustration > priorityThreshold || (urgency >= 0.8 && sentiment < 0)
	if priority {
		signals = append(signals, "priority_flag")
	}

	return model.SentimentScores{
		Sentiment:   round3(sentiment),
		Urgency:     round3(urgency),
		Frustration: round3(frustration),
		Signals:     signals,
		Priority:    priority,
	}
}

func ruleSentiment(lower string) float64 {
	var negative, positive int
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			negative++
		}
	}
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			positive++
		}
	}
	total := negative + positive
	if total == 0 {
		return 0
	}
	return float64(positive-negative) / float64(total)
}

// combineFrustration weights the strongest signal at 0.7 and the average
// of all signals at 0.3.
func combineFrustration(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	maxScore := scores[0]
	sum := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
		sum += s
	}
	if len(scores) == 1 {
		return maxScore
	}
	return clamp01(maxScore*0.7 + (sum/float64(len(scores)))*0.3)
}

func capsRatio(text string) float64 {
	var alpha, upper int
	for _, r := range text {
		if unicode.IsLetter(r) {
			alpha++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if alpha == 0 {
		return 0
	}
	return float64(upper) / float64(alpha)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
