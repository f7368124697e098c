package chat

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "joblog-insights/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Plan is an ordered sequence of aggregation stages. Order is significant:
// stages execute sequentially, each consuming the previous stage's output.
// A Plan only exists after the raw model text has been parsed and validated;
// nothing downstream of ExtractPlan ever touches raw text.
type Plan []map[string]interface{}

// Models routinely wrap structured output in prose or code fences despite
// instructions not to, so extraction tolerates both a fenced block and a
// bare JSON body.
var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Every stage is an object with exactly one $-prefixed operator key.
const stageSchemaJSON = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"minProperties": 1,
		"maxProperties": 1,
		"patternProperties": {"^\\$[a-zA-Z]+$": {}},
		"additionalProperties": false
	}
}`

var stageSchema = gojsonschema.NewStringLoader(stageSchemaJSON)

// ExtractPlan turns raw model text into a Plan or fails with a
// PLAN_PARSE_FAILED error carrying the parser diagnostic. The store is never
// queried with unparsed or partially-malformed input.
func ExtractPlan(raw string) (Plan, error) {
	payload := raw
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		payload = m[1]
	}

	var plan Plan
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &plan); err != nil {
		return nil, apperrors.NewPlanParseFailedError(err)
	}

	if err := validateStages(plan); err != nil {
		return nil, apperrors.NewPlanParseFailedError(err)
	}

	return plan, nil
}

func validateStages(plan Plan) error {
	result, err := gojsonschema.Validate(stageSchema, gojsonschema.NewGoLoader(plan))
	if err != nil {
		return err
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("invalid stage sequence: %s", strings.Join(problems, "; "))
	}
	return nil
}

var timestampBoundKeys = []string{"$gte", "$gt", "$lte", "$lt"}

// NormalizePlan converts string ISO-8601 bounds inside $match.timestamp to
// native timestamps. Every $match stage is scanned, not only the first one:
// a plan that match-filters by date after a $group would otherwise hand the
// store a string comparison against a datetime field. Non-string bounds and
// absent keys are left untouched, which makes normalization idempotent.
func NormalizePlan(plan Plan) (Plan, error) {
	for _, stage := range plan {
		match, ok := stage["$match"].(map[string]interface{})
		if !ok {
			continue
		}
		bounds, ok := match["timestamp"].(map[string]interface{})
		if !ok {
			continue
		}
		for _, key := range timestampBoundKeys {
			raw, present := bounds[key]
			if !present {
				continue
			}
			s, isString := raw.(string)
			if !isString {
				continue
			}
			t, err := parseISOTimestamp(s)
			if err != nil {
				return nil, apperrors.NewPlanParseFailedError(
					fmt.Errorf("timestamp bound %s: %w", key, err))
			}
			bounds[key] = t
		}
	}
	return plan, nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseISOTimestamp(s string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 timestamp: %q", s)
}
