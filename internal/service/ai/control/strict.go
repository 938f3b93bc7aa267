package control

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
)

// ParseAssessment decodes the second metrics block.
func ParseAssessment(raw string) (interview.Assessment, error) {
	m, err := DecodeStrict(raw)
	if err != nil {
		return interview.Assessment{}, err
	}
	if err := requireKeys(m, "summary", "clarity_score", "completeness_score", "feedback_response", "tech_fit_level", "tech_fit_comment"); err != nil {
		return interview.Assessment{}, err
	}

	clarity, err := score(m, "clarity_score")
	if err != nil {
		return interview.Assessment{}, err
	}
	completeness, err := score(m, "completeness_score")
	if err != nil {
		return interview.Assessment{}, err
	}
	level, err := oneOf(m, "tech_fit_level", interview.TechFitLow, interview.TechFitMedium, interview.TechFitHigh)
	if err != nil {
		return interview.Assessment{}, err
	}

	return interview.Assessment{
		Summary:           text(m, "summary"),
		ClarityScore:      clarity,
		CompletenessScore: completeness,
		FeedbackResponse:  text(m, "feedback_response"),
		TechFitLevel:      level,
		TechFitComment:    text(m, "tech_fit_comment"),
	}, nil
}

// ParseVerdict decodes the third metrics block.
func ParseVerdict(raw string) (interview.Verdict, error) {
	m, err := DecodeStrict(raw)
	if err != nil {
		return interview.Verdict{}, err
	}
	if err := requireKeys(m, "strengths", "weaknesses", "cheating_summary", "seniority_guess", "recommendation"); err != nil {
		return interview.Verdict{}, err
	}

	seniority, err := oneOf(m, "seniority_guess", interview.SeniorityJunior, interview.SeniorityMiddle, interview.SenioritySenior)
	if err != nil {
		return interview.Verdict{}, err
	}
	recommendation, err := oneOf(m, "recommendation",
		interview.RecommendReject, interview.RecommendDoubt, interview.RecommendHire, interview.RecommendStrongHire)
	if err != nil {
		return interview.Verdict{}, err
	}

	return interview.Verdict{
		Strengths:       text(m, "strengths"),
		Weaknesses:      text(m, "weaknesses"),
		CheatingSummary: text(m, "cheating_summary"),
		SeniorityGuess:  seniority,
		Recommendation:  recommendation,
	}, nil
}

// ParseTestSuite decodes a generated test suite for the task at taskIndex.
// Tests without an id are numbered t1, t2, ... by position.
func ParseTestSuite(raw string, taskIndex int) (*interview.CodeTestSuite, error) {
	m, err := DecodeStrict(raw)
	if err != nil {
		return nil, err
	}

	rawTests, ok := m["tests"].([]any)
	if !ok {
		return nil, &DecodeError{Field: "tests", Reason: "must be an array"}
	}
	if len(rawTests) == 0 {
		return nil, &DecodeError{Field: "tests", Reason: "must not be empty"}
	}

	suite := &interview.CodeTestSuite{TaskIndex: taskIndex, Tests: make([]interview.CodeTestCase, 0, len(rawTests))}
	for i, item := range rawTests {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &DecodeError{Field: fmt.Sprintf("tests[%d]", i), Reason: "must be an object"}
		}
		tc := Mapping(obj)

		id := text(tc, "id")
		if id == "" {
			id = "t" + strconv.Itoa(i+1)
		}
		if err := requireKeys(tc, "input_data", "expected_output"); err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				de.Field = fmt.Sprintf("tests[%d].%s", i, de.Field)
			}
			return nil, err
		}
		hidden, err := flag(tc["is_hidden"])
		if err != nil {
			return nil, &DecodeError{Field: fmt.Sprintf("tests[%d].is_hidden", i), Reason: err.Error()}
		}

		suite.Tests = append(suite.Tests, interview.CodeTestCase{
			ID:             id,
			InputData:      text(tc, "input_data"),
			ExpectedOutput: text(tc, "expected_output"),
			Hidden:         hidden,
		})
	}
	return suite, nil
}

func requireKeys(m Mapping, keys ...string) error {
	for _, key := range keys {
		if _, ok := m[key]; !ok {
			return &DecodeError{Field: key, Reason: "missing"}
		}
	}
	return nil
}

func text(m Mapping, key string) string {
	s, err := scalarString(m[key])
	if err != nil {
		return ""
	}
	return s
}

func score(m Mapping, key string) (int, error) {
	var n float64
	switch v := m[key].(type) {
	case float64:
		n = v
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &DecodeError{Field: key, Reason: fmt.Sprintf("not an integer: %q", v), Err: err}
		}
		n = float64(parsed)
	default:
		return 0, &DecodeError{Field: key, Reason: fmt.Sprintf("not an integer: %v", v)}
	}
	if n != math.Trunc(n) {
		return 0, &DecodeError{Field: key, Reason: fmt.Sprintf("not an integer: %v", n)}
	}
	if n < 0 || n > 5 {
		return 0, &DecodeError{Field: key, Reason: fmt.Sprintf("must be in [0,5], got %v", n)}
	}
	return int(n), nil
}

func oneOf[T ~string](m Mapping, key string, allowed ...T) (T, error) {
	value := strings.ToLower(strings.TrimSpace(text(m, key)))
	for _, candidate := range allowed {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	valid := make([]string, 0, len(allowed))
	for _, candidate := range allowed {
		valid = append(valid, string(candidate))
	}
	var zero T
	return zero, &DecodeError{Field: key, Reason: fmt.Sprintf("invalid value %q, expected one of: %s", value, strings.Join(valid, ", "))}
}

func flag(v any) (bool, error) {
	switch val := v.(type) {
	case nil:
		return false, nil
	case bool:
		return val, nil
	case float64:
		return val != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean %q", val)
	default:
		return false, fmt.Errorf("invalid boolean %v", val)
	}
}
