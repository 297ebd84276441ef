package classify

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"watchtower/pkg/models"
)

// LoadStats tracks the number of loaded and skipped rules.
type LoadStats struct {
	TotalFiles     int
	Loaded         int
	SkippedComplex int
	SkippedInvalid int
}

// Classification is the verdict of a matched Sigma rule, used to admit an
// otherwise untyped envelope as a suspicious_behavior event.
type Classification struct {
	RuleID       string
	RuleTitle    string
	SeverityHint models.Severity
}

type compiledRule struct {
	eval    *sigmaevaluator.RuleEvaluator
	verdict Classification
}

// Classifier evaluates Sigma rules against raw event metadata. Envelopes
// that arrive without a known event type are admitted only when a rule
// matches.
type Classifier struct {
	rules []compiledRule
	ctx   context.Context
}

// NewClassifier loads Sigma rules from a file or directory. Rules with
// aggregations, timeframes or keyword searches are skipped and counted.
func NewClassifier(path string) (*Classifier, LoadStats, error) {
	var stats LoadStats

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	files := make([]string, 0, 64)
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !entry.IsDir() && isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledRule, 0, len(files))
	for _, ruleFile := range files {
		raw, err := os.ReadFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		rule, err := sigma.ParseRule(raw)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		if !isSimpleRule(rule) {
			stats.SkippedComplex++
			continue
		}
		compiled = append(compiled, compiledRule{
			eval:    sigmaevaluator.ForRule(rule),
			verdict: verdictFromRule(rule),
		})
		stats.Loaded++
	}

	return &Classifier{rules: compiled, ctx: context.Background()}, stats, nil
}

// Classify evaluates all loaded rules against the raw metadata and returns
// the first match.
func (c *Classifier) Classify(metadata map[string]interface{}) (Classification, bool) {
	if c == nil || len(c.rules) == 0 || len(metadata) == 0 {
		return Classification{}, false
	}
	for _, rule := range c.rules {
		res, err := rule.eval.Matches(c.ctx, metadata)
		if err != nil {
			continue
		}
		if res.Match {
			return rule.verdict, true
		}
	}
	return Classification{}, false
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

func isSimpleRule(rule sigma.Rule) bool {
	if rule.Detection.Timeframe > 0 {
		return false
	}
	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false
		}
	}
	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false
		}
		if len(search.EventMatchers) == 0 {
			return false
		}
	}
	return true
}

func verdictFromRule(rule sigma.Rule) Classification {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}
	sev, err := models.ParseSeverity(rule.Level)
	if err != nil {
		sev = models.SeverityMedium
	}
	return Classification{
		RuleID:       id,
		RuleTitle:    strings.TrimSpace(rule.Title),
		SeverityHint: sev,
	}
}
