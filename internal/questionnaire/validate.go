package questionnaire

import (
	"encoding/json"
	"fmt"
	"journey_backend/internal/model"
	"journey_backend/internal/util"
	"strconv"
	"strings"
)

const (
	ScaleMin = 1
	ScaleMax = 5
)

// ValidateAnswer checks a value against the question's answer format. An empty
// value is always accepted; it clears the answer.
func ValidateAnswer(q *model.DiscoveryQuestion, text *string, raw json.RawMessage) error {
	if !model.HasAnswerValue(text, raw) {
		return nil
	}
	t := ""
	if text != nil {
		t = strings.TrimSpace(*text)
	}

	switch q.AnswerFormat {
	case model.FormatFreeText:
		return nil
	case model.FormatNumber:
		if _, err := strconv.ParseFloat(t, 64); err != nil {
			return invalid(q, "expected a number")
		}
	case model.FormatPercentage:
		v, err := strconv.ParseFloat(strings.TrimSuffix(t, "%"), 64)
		if err != nil || v < 0 || v > 100 {
			return invalid(q, "expected a percentage between 0 and 100")
		}
	case model.FormatYesNo:
		if l := strings.ToLower(t); l != "yes" && l != "no" {
			return invalid(q, "expected yes or no")
		}
	case model.FormatSingleSelect:
		if !containsOption(q.OptionList(), t) {
			return invalid(q, "option not offered")
		}
	case model.FormatMultiSelect:
		var picked []string
		if err := json.Unmarshal(raw, &picked); err != nil {
			return invalid(q, "expected a list of options")
		}
		opts := q.OptionList()
		for _, p := range picked {
			if !containsOption(opts, p) {
				return invalid(q, "option not offered")
			}
		}
	case model.FormatScale:
		v, ok := scaleValue(t, raw)
		if !ok || v < ScaleMin || v > ScaleMax {
			return invalid(q, "expected a value from 1 to 5")
		}
	default:
		return invalid(q, "unknown answer format")
	}
	return nil
}

func scaleValue(text string, raw json.RawMessage) (int, bool) {
	if len(raw) > 0 && string(raw) != "null" {
		var v int
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, true
		}
		return 0, false
	}
	v, err := strconv.Atoi(text)
	return v, err == nil
}

// containsOption accepts anything when the question carries no option list.
func containsOption(opts []string, v string) bool {
	if len(opts) == 0 {
		return true
	}
	for _, o := range opts {
		if o == v {
			return true
		}
	}
	return false
}

func invalid(q *model.DiscoveryQuestion, reason string) error {
	return fmt.Errorf("%w: question %s (%s): %s", util.ErrInvalidAnswer, q.ID, q.AnswerFormat, reason)
}
