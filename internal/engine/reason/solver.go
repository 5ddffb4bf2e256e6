package reason

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/intentcore/server/internal/engine/model"
)

// Deadline phrases the solver can ground against the clock.
var (
	withinDaysPattern = regexp.MustCompile(`(?i)within\s+(\d+)\s+(day|days|business\s+day|business\s+days|hour|hours)`)
	byWeekdayPattern  = regexp.MustCompile(`(?i)(?:by|before)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`)
	byRelativePattern = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|end\s+of\s+day|eod|asap)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// minFulfillmentLead is the shortest horizon any order action can realistically
// meet. Deadlines tighter than this are flagged rather than promised.
const minFulfillmentLead = 24 * time.Hour

// Substitute actions proposed when a hard constraint blocks its intent.
var blockedSubstitutes = map[model.ConstraintType]string{
	model.ConstraintPolicy:    "explain_policy",
	model.ConstraintDeadline:  "escalate_to_human",
	model.ConstraintInventory: "offer_alternative_item",
}

// SolveConstraints classifies every constraint as satisfied, violable or
// blocked. Pure function of its inputs: enrichment and policy verdicts are
// read, never fetched, and now is injected for deadline math.
//
// Degradation rules:
//   - nil enrichment: enrichment-dependent constraints become violable.
//   - nil verdicts: policy constraints become violable.
//   - a blocked hard constraint yields at least one plan sketch so the run
//     can continue without the blocking intent.
func SolveConstraints(
	constraints []model.Constraint,
	enrichment *model.EnrichmentContext,
	verdicts *model.PolicyVerdicts,
	now time.Time,
) ([]model.SolvedConstraint, []model.PlanSketch) {
	solved := make([]model.SolvedConstraint, 0, len(constraints))
	var sketches []model.PlanSketch

	for _, c := range constraints {
		var sc model.SolvedConstraint
		switch c.Type {
		case model.ConstraintDeadline:
			sc = solveDeadline(c, enrichment, now)
		case model.ConstraintPolicy:
			sc = solvePolicy(c, verdicts)
		case model.ConstraintInventory:
			sc = solveInventory(c, enrichment)
		case model.ConstraintPreference:
			sc = model.SolvedConstraint{
				Constraint: c,
				Status:     model.ConstraintSatisfied,
				Reason:     "preference recorded for planning",
			}
		default:
			sc = model.SolvedConstraint{
				Constraint: c,
				Status:     model.ConstraintViolable,
				Reason:     "unrecognized constraint type",
			}
		}

		solved = append(solved, sc)

		if sc.Status == model.ConstraintBlocked && sc.Hard {
			sketches = append(sketches, sketchFor(sc))
		}
	}

	return solved, sketches
}

func solveDeadline(c model.Constraint, enrichment *model.EnrichmentContext, now time.Time) model.SolvedConstraint {
	// An action on a cancelled order can never meet its deadline.
	if order := enrichment.PrimaryOrder(); order != nil && order.Cancelled {
		return model.SolvedConstraint{
			Constraint: c,
			Status:     model.ConstraintBlocked,
			Reason:     fmt.Sprintf("order %s is cancelled", order.OrderID),
		}
	}

	deadline, ok := parseDeadline(c, now)
	if !ok {
		return model.SolvedConstraint{
			Constraint: c,
			Status:     model.ConstraintViolable,
			Reason:     "deadline could not be grounded against the calendar",
		}
	}

	remaining := deadline.Sub(now)
	switch {
	case remaining <= 0:
		return model.SolvedConstraint{
			Constraint: c,
			Status:     model.ConstraintBlocked,
			Reason:     "stated deadline has already passed",
		}
	case remaining < minFulfillmentLead:
		return model.SolvedConstraint{
			Constraint: c,
			Status:     model.ConstraintViolable,
			Reason:     fmt.Sprintf("deadline in %s is tighter than standard handling", remaining.Round(time.Hour)),
		}
	default:
		return model.SolvedConstraint{
			Constraint: c,
			Status:     model.ConstraintSatisfied,
			Reason:     fmt.Sprintf("%d days of lead time remain", int(remaining.Hours()/24)),
		}
	}
}

// parseDeadline grounds the constraint text against now. The value field is
// tried first, then the description.
func parseDeadline(c model.Constraint, now time.Time) (time.Time, bool) {
	for _, text := range []string{c.Value, c.Description} {
		if text == "" {
			continue
		}

		if m := withinDaysPattern.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				unit := 24 * time.Hour
				if strings.HasPrefix(strings.ToLower(m[2]), "hour") {
					unit = time.Hour
				}
				return now.Add(time.Duration(n) * unit), true
			}
		}

		if m := byWeekdayPattern.FindStringSubmatch(text); m != nil {
			target := weekdays[strings.ToLower(m[1])]
			days := (int(target) - int(now.Weekday()) + 7) % 7
			if days == 0 {
				days = 7
			}
			day := now.AddDate(0, 0, days)
			return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, now.Location()), true
		}

		if m := byRelativePattern.FindStringSubmatch(text); m != nil {
			switch strings.ToLower(strings.Join(strings.Fields(m[1]), " ")) {
			case "today", "tonight", "end of day", "eod", "asap":
				return time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location()), true
			case "tomorrow":
				day := now.AddDate(0, 0, 1)
				return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, now.Location()), true
			}
		}
	}
	return time.Time{}, false
}

func solvePolicy(c model.Constraint, verdicts *model.PolicyVerdicts) model.SolvedConstraint {
	if verdicts == nil {
		return model.SolvedConstraint{
			Constraint: c,
			Status:     model.ConstraintViolable,
			Reason:     "policy verdicts unavailable",
		}
	}

	if model.CategoryOf(c.IntentCode) == model.CategoryReturnExchange && !verdicts.ReturnEligible {
		return model.SolvedConstraint{
			Constraint: c,
			Status:     model.ConstraintBlocked,
			Reason:     verdicts.ReturnIneligibleWhy,
		}
	}

	return model.SolvedConstraint{
		Constraint: c,
		Status:     model.ConstraintSatisfied,
		Reason:     "within policy",
	}
}

func solveInventory(c model.Constraint, enrichment *model.EnrichmentContext) model.SolvedConstraint {
	if enrichment == nil {
		return model.SolvedConstraint{
			Constraint: c,
			Status:     model.ConstraintViolable,
			Reason:     "enrichment unavailable, stock not verified",
		}
	}

	want := strings.ToLower(strings.TrimSpace(c.Value))
	for _, order := range enrichment.Orders {
		for _, item := range order.Items {
			if want != "" && strings.ToLower(item.SKU) != want && !strings.Contains(strings.ToLower(item.Name), want) {
				continue
			}
			if item.InStock {
				return model.SolvedConstraint{
					Constraint: c,
					Status:     model.ConstraintSatisfied,
					Reason:     fmt.Sprintf("item %s in stock", item.SKU),
				}
			}
			return model.SolvedConstraint{
				Constraint: c,
				Status:     model.ConstraintBlocked,
				Reason:     fmt.Sprintf("item %s out of stock", item.SKU),
			}
		}
	}

	return model.SolvedConstraint{
		Constraint: c,
		Status:     model.ConstraintViolable,
		Reason:     "item not found in known orders, stock not verified",
	}
}

func sketchFor(sc model.SolvedConstraint) model.PlanSketch {
	substitute := blockedSubstitutes[sc.Type]
	if substitute == "" {
		substitute = "escalate_to_human"
	}
	return model.PlanSketch{
		DroppedIntent:    sc.IntentCode,
		SubstituteAction: substitute,
		Note:             fmt.Sprintf("hard %s constraint blocked: %s", sc.Type, sc.Reason),
	}
}
