// Package result turns the analysis backend's JSON payload into the
// normalized Result shown to the user.
package result

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"skinscan/chapter"
)

var ErrMalformedResponse = errors.New("malformed analysis response")

const (
	fieldSkinType   = "predicted_skin_type"
	fieldConditions = "skin_conditions"
	fieldScore      = "overall_skin_condition_score"
	fieldChapter    = "recommended_chapter"
)

type Result struct {
	SkinType           string
	Conditions         []string
	SkinScore          int
	RecommendedChapter int
}

// Normalize validates and maps a raw response body. Condition order follows
// the key order of skin_conditions in the payload.
func Normalize(raw []byte) (Result, error) {
	if !gjson.ValidBytes(raw) {
		return Result{}, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Result{}, fmt.Errorf("%w: body is not an object", ErrMalformedResponse)
	}

	skinType := root.Get(fieldSkinType)
	if skinType.Type != gjson.String {
		return Result{}, fmt.Errorf("%w: %s missing or not a string", ErrMalformedResponse, fieldSkinType)
	}
	score := root.Get(fieldScore)
	if score.Type != gjson.Number {
		return Result{}, fmt.Errorf("%w: %s missing or not a number", ErrMalformedResponse, fieldScore)
	}

	skinScore, ok := roundHalfUp(score.Float())
	if !ok {
		return Result{}, fmt.Errorf("%w: %s %s out of integer range", ErrMalformedResponse, fieldScore, score.Raw)
	}

	// A repeated key keeps its first position.
	conditions := []string{}
	if c := root.Get(fieldConditions); c.IsObject() {
		seen := map[string]bool{}
		c.ForEach(func(key, _ gjson.Result) bool {
			if k := key.String(); !seen[k] {
				seen[k] = true
				conditions = append(conditions, k)
			}
			return true
		})
	}

	recommended := chapter.Default
	if rc := root.Get(fieldChapter); rc.Type == gjson.String {
		recommended = chapter.Lookup(rc.String())
	}

	return Result{
		SkinType:           skinType.String(),
		Conditions:         conditions,
		SkinScore:          skinScore,
		RecommendedChapter: recommended,
	}, nil
}

// roundHalfUp rounds .5 toward positive infinity. It reports false when the
// result does not fit in an int.
func roundHalfUp(f float64) (int, bool) {
	r := math.Floor(f + 0.5)
	if math.IsNaN(r) || r < math.MinInt64 || r >= math.MaxInt64 {
		return 0, false
	}
	return int(r), true
}

// ScoreInRange reports whether the score lies in the documented 0..100 band.
// Out-of-range scores are passed through unchanged.
func (r Result) ScoreInRange() bool {
	return r.SkinScore >= 0 && r.SkinScore <= 100
}

// Severity labels a condition by its rank in the response.
func Severity(rank int) string {
	switch rank {
	case 0:
		return "Prominent"
	case 1:
		return "Moderate"
	default:
		return "Mild"
	}
}

// Summary renders the result as plain text for the clipboard.
func (r Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Skin type: %s\n", r.SkinType)
	fmt.Fprintf(&b, "Skin score: %d/100\n", r.SkinScore)
	if len(r.Conditions) > 0 {
		b.WriteString("Conditions:\n")
		for i, c := range r.Conditions {
			fmt.Fprintf(&b, "  - %s (%s)\n", c, Severity(i))
		}
	}
	if ch, ok := chapter.Get(r.RecommendedChapter); ok {
		fmt.Fprintf(&b, "Recommended: Chapter %d, %s\n", ch.Number, ch.Title)
	}
	return b.String()
}
