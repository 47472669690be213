package quality

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"retailcli/internal/config"
	apperrors "retailcli/internal/errors"
	"retailcli/pkg/contracts/domain"
)

// defaultSampleKeys caps how many offending row keys a check carries into the
// report when no sample size is configured.
const defaultSampleKeys = 5

// Row is the layer-neutral shape rules evaluate against. Adapters in this
// package build rows from raw records, silver records, and fact rows.
type Row struct {
	Key    string
	Kind   string
	Fields map[string]string
}

type compiledRule struct {
	rule Rule
	num  float64
	re   *regexp.Regexp
	set  map[string]struct{}
}

// Engine holds a compiled rule set. Compilation front-loads every
// configuration failure so Evaluate cannot error mid-run.
type Engine struct {
	rules      []compiledRule
	sampleSize int
	logger     *slog.Logger
}

// NewEngine compiles the rule set, rejecting unparseable thresholds and
// patterns with a fatal RuleConfigurationError.
func NewEngine(set *RuleSet, cfg config.QualityConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sampleSize := cfg.SampleSize
	if sampleSize <= 0 {
		sampleSize = defaultSampleKeys
	}
	compiled := make([]compiledRule, 0, len(set.Rules))
	for _, rule := range set.Rules {
		c := compiledRule{rule: rule}
		switch rule.Operator {
		case "gt", "gte", "lt", "lte":
			n, err := strconv.ParseFloat(rule.Value, 64)
			if err != nil {
				return nil, apperrors.NewRuleConfigurationError(
					fmt.Sprintf("rule %q: operator %s needs a numeric value, got %q",
						rule.Name, rule.Operator, rule.Value), err)
			}
			c.num = n
		case "matches":
			re, err := regexp.Compile(rule.Value)
			if err != nil {
				return nil, apperrors.NewRuleConfigurationError(
					fmt.Sprintf("rule %q: invalid pattern %q", rule.Name, rule.Value), err)
			}
			c.re = re
		case "one_of":
			values := strings.Split(rule.Value, ",")
			c.set = make(map[string]struct{}, len(values))
			for _, v := range values {
				v = strings.TrimSpace(v)
				if v != "" {
					c.set[v] = struct{}{}
				}
			}
			if len(c.set) == 0 {
				return nil, apperrors.NewRuleConfigurationError(
					fmt.Sprintf("rule %q: one_of needs at least one value", rule.Name), nil)
			}
		}
		compiled = append(compiled, c)
	}
	return &Engine{rules: compiled, sampleSize: sampleSize, logger: logger}, nil
}

// Evaluate runs every rule scoped to layer against rows. Results come back in
// rule-file order; a failing rule is a result row, never an error.
func (e *Engine) Evaluate(layer domain.Layer, rows []Row) []domain.QualityCheckResult {
	var results []domain.QualityCheckResult
	failed := 0
	for _, c := range e.rules {
		if !c.rule.AppliesTo(layer) {
			continue
		}
		affected := 0
		var samples []string
		for _, row := range rows {
			if !c.rule.appliesToKind(row.Kind) {
				continue
			}
			if !c.violates(row) {
				continue
			}
			affected++
			if len(samples) < e.sampleSize {
				samples = append(samples, row.Key)
			}
		}
		if affected > 0 {
			failed++
		}
		results = append(results, domain.QualityCheckResult{
			Name:         c.rule.Name,
			Passed:       affected == 0,
			RowsAffected: affected,
			Action:       domain.RuleAction(c.rule.Action),
			SampleKeys:   samples,
		})
	}

	e.logger.Debug("quality rules evaluated",
		slog.String("layer", string(layer)),
		slog.Int("rows", len(rows)),
		slog.Int("checks", len(results)),
		slog.Int("failed", failed))
	return results
}

// violates reports whether the row fails the rule's predicate. not_null
// treats a missing or empty field as a failure; every other operator skips
// rows without the field so value rules compose with presence rules instead
// of double-counting absent columns.
func (c compiledRule) violates(row Row) bool {
	value, ok := row.Fields[c.rule.Field]
	value = strings.TrimSpace(value)
	if c.rule.Operator == "not_null" {
		return !ok || value == ""
	}
	if !ok || value == "" {
		return false
	}

	switch c.rule.Operator {
	case "eq":
		return value != c.rule.Value
	case "neq":
		return value == c.rule.Value
	case "gt", "gte", "lt", "lte":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return true
		}
		return !c.compare(n)
	case "one_of":
		_, member := c.set[value]
		return !member
	case "matches":
		return !c.re.MatchString(value)
	}
	return false
}

func (c compiledRule) compare(n float64) bool {
	switch c.rule.Operator {
	case "gt":
		return n > c.num
	case "gte":
		return n >= c.num
	case "lt":
		return n < c.num
	default:
		return n <= c.num
	}
}
