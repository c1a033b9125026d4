// internal/quality/classifier.go
package quality

import (
	"context"
	"fmt"
	"os"
	"strings"

	"codeharvest/internal/model"
)

// Thresholds are the policy bounds applied by the suitability classifier.
type Thresholds struct {
	MinQualityScore float64
	MinCodeLines    int
	MaxCodeLines    int
	AllowedLicenses []string
}

// Classifier decides whether a downloaded file is worth keeping for learning
// use. Checks run in a fixed order and the first failure wins.
type Classifier struct {
	eval       *Evaluator
	thresholds Thresholds
}

func NewClassifier(eval *Evaluator, thresholds Thresholds) *Classifier {
	return &Classifier{eval: eval, thresholds: thresholds}
}

// Classify evaluates one file on disk against the policy. The verdict order
// is: file presence, repository license, code line bounds, quality score.
// A missing file yields an unknown verdict rather than a failed one, since
// nothing could be measured. The returned verdict is deterministic for an
// unchanged file and thresholds.
func (c *Classifier) Classify(ctx context.Context, path string, license *string) (model.Suitability, string, float64, int, model.Complexity) {
	if _, err := os.Stat(path); err != nil {
		return model.SuitabilityUnknown, "file missing", 0, 0, model.Complexity{}
	}

	if license != nil && !c.licenseAllowed(*license) {
		// Still measure the file so the record carries metrics.
		score := c.eval.Evaluate(ctx, path)
		lines := c.eval.CountCodeLines(path)
		cpx := c.eval.AssessComplexity(ctx, path)
		return model.Unsuitable, fmt.Sprintf("license incompatible (%s)", *license), score, lines, cpx
	}

	score := c.eval.Evaluate(ctx, path)
	lines := c.eval.CountCodeLines(path)
	cpx := c.eval.AssessComplexity(ctx, path)

	if lines < c.thresholds.MinCodeLines {
		return model.Unsuitable, fmt.Sprintf("too few code lines (%d < %d)", lines, c.thresholds.MinCodeLines), score, lines, cpx
	}
	if lines > c.thresholds.MaxCodeLines {
		return model.Unsuitable, fmt.Sprintf("too many code lines (%d > %d)", lines, c.thresholds.MaxCodeLines), score, lines, cpx
	}
	if score < c.thresholds.MinQualityScore {
		return model.Unsuitable, fmt.Sprintf("quality below threshold (%.1f < %.1f)", score, c.thresholds.MinQualityScore), score, lines, cpx
	}
	return model.Suitable, "suitable for learning", score, lines, cpx
}

// licenseAllowed matches the repository license against the allow-list either
// exactly or by substring, so "MIT License" admits "MIT No Attribution
// License" style variants the hosting service reports.
func (c *Classifier) licenseAllowed(name string) bool {
	for _, allowed := range c.thresholds.AllowedLicenses {
		if name == allowed || strings.Contains(name, allowed) {
			return true
		}
	}
	return false
}
