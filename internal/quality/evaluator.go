// internal/quality/evaluator.go
package quality

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"codeharvest/internal/model"
)

var ratingRe = regexp.MustCompile(`rated at (-?[\d.]+)/10`)

// Evaluator runs the external static analyzers over downloaded source files.
// Every method degrades to a zero value when a tool is missing or fails, so
// one broken file never aborts a crawl.
type Evaluator struct {
	runner ToolRunner
	logger *slog.Logger

	// Guards the radon availability check; concurrent download workers share
	// one Evaluator and the on-demand install must run at most once.
	radonMu      sync.Mutex
	radonChecked bool
}

func NewEvaluator(runner ToolRunner, logger *slog.Logger) *Evaluator {
	return &Evaluator{runner: runner, logger: logger}
}

// Evaluate scores a file with pylint and returns the 0-10 rating. Negative
// ratings (pylint can go below zero on pathological input) clamp to 0, as does
// any tool failure or unparseable output.
func (e *Evaluator) Evaluate(ctx context.Context, path string) float64 {
	out, err := e.runner.Run(ctx, "pylint", path, "--disable=C0111", "--disable=C0103")
	// pylint exits non-zero whenever it finds anything, so only give up
	// when there is no report to parse.
	if len(out) == 0 {
		if err != nil {
			e.logger.Warn("pylint failed", "path", path, "error", err)
		}
		return 0
	}
	m := ratingRe.FindSubmatch(out)
	if m == nil {
		e.logger.Warn("pylint output had no rating", "path", path)
		return 0
	}
	score, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil || score < 0 {
		return 0
	}
	return score
}

// CountCodeLines counts effective code lines in a Python file: blank lines,
// # comments and triple-quoted blocks do not count. A line that both opens and
// closes a triple-quoted string counts as comment without entering a block.
func (e *Evaluator) CountCodeLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		e.logger.Warn("count code lines failed", "path", path, "error", err)
		return 0
	}
	defer f.Close()

	count := 0
	inBlock := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Count(line, `"""`) == 2 || strings.Count(line, `'''`) == 2 {
			continue
		}
		if strings.Contains(line, `"""`) || strings.Contains(line, `'''`) {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			continue
		}
		count++
	}
	if err := sc.Err(); err != nil {
		e.logger.Warn("count code lines failed", "path", path, "error", err)
		return 0
	}
	return count
}

// radonBlock is one entry of `radon cc --json` output, keyed by file path.
type radonBlock struct {
	Complexity int `json:"complexity"`
}

// AssessComplexity computes cyclomatic complexity metrics with radon. The tool
// is installed on demand the first time it is missing; any failure along the
// way yields zero metrics.
func (e *Evaluator) AssessComplexity(ctx context.Context, path string) model.Complexity {
	if !e.ensureRadon(ctx) {
		return model.Complexity{}
	}
	out, err := e.runner.Run(ctx, "radon", "cc", path, "--json")
	if err != nil && len(out) == 0 {
		e.logger.Warn("radon failed", "path", path, "error", err)
		return model.Complexity{}
	}
	var report map[string][]radonBlock
	if err := json.Unmarshal(out, &report); err != nil {
		e.logger.Warn("radon output unparseable", "path", path, "error", err)
		return model.Complexity{}
	}
	var blocks []radonBlock
	for _, b := range report {
		blocks = append(blocks, b...)
	}
	if len(blocks) == 0 {
		return model.Complexity{}
	}
	var sum, max int
	for _, b := range blocks {
		sum += b.Complexity
		if b.Complexity > max {
			max = b.Complexity
		}
	}
	return model.Complexity{
		AvgComplexity: float64(sum) / float64(len(blocks)),
		MaxComplexity: max,
		FunctionCount: len(blocks),
	}
}

func (e *Evaluator) ensureRadon(ctx context.Context) bool {
	e.radonMu.Lock()
	defer e.radonMu.Unlock()
	if e.radonChecked {
		return true
	}
	if _, err := e.runner.LookPath("radon"); err == nil {
		e.radonChecked = true
		return true
	}
	e.logger.Info("radon not found, installing")
	if _, err := e.runner.Run(ctx, "pip3", "install", "radon"); err != nil {
		e.logger.Warn("radon install failed", "error", err)
		return false
	}
	if _, err := e.runner.LookPath("radon"); err != nil {
		return false
	}
	e.radonChecked = true
	return true
}
