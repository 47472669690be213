package quality

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	apperrors "retailcli/internal/errors"
	"retailcli/pkg/contracts/domain"
)

// Rule is one declarative check. Layers scope it to the medallion layers it
// runs against; Kinds optionally narrows it to specific record kinds so a
// sales-only field does not flag inventory rows.
type Rule struct {
	Name        string   `yaml:"name" validate:"required"`
	Description string   `yaml:"description"`
	Layers      []string `yaml:"layers" validate:"required,min=1,dive,oneof=bronze silver gold"`
	Kinds       []string `yaml:"kinds" validate:"omitempty,dive,oneof=sale inventory_snapshot shipment"`
	Field       string   `yaml:"field" validate:"required"`
	Operator    string   `yaml:"operator" validate:"required,oneof=not_null eq neq gt gte lt lte one_of matches"`
	Value       string   `yaml:"value"`
	Action      string   `yaml:"action" validate:"required,oneof=flag quarantine reject report-only"`
}

// RuleSet is the parsed rule file. Rule order is preserved so the report
// lists checks the way operators wrote them.
type RuleSet struct {
	Version int    `yaml:"version" validate:"required,min=1"`
	Rules   []Rule `yaml:"rules" validate:"required,min=1,dive"`
}

// LoadRuleSet reads and validates a YAML rule file. Every failure mode is a
// fatal RuleConfigurationError so a bad rule file stops the run before any
// layer is written.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewRuleConfigurationError(
			fmt.Sprintf("read rule file %s", path), err)
	}

	var set RuleSet
	if err := yaml.UnmarshalStrict(data, &set); err != nil {
		return nil, apperrors.NewRuleConfigurationError(
			fmt.Sprintf("parse rule file %s", path), err)
	}

	validate := validator.New()
	if err := validate.Struct(&set); err != nil {
		return nil, apperrors.NewRuleConfigurationError(
			fmt.Sprintf("invalid rule set in %s", path), err)
	}

	seen := make(map[string]struct{}, len(set.Rules))
	for _, rule := range set.Rules {
		if _, dup := seen[rule.Name]; dup {
			return nil, apperrors.NewRuleConfigurationError(
				fmt.Sprintf("duplicate rule name %q in %s", rule.Name, path), nil)
		}
		seen[rule.Name] = struct{}{}
	}
	return &set, nil
}

// AppliesTo reports whether the rule runs against the given layer.
func (r Rule) AppliesTo(layer domain.Layer) bool {
	for _, l := range r.Layers {
		if domain.Layer(l) == layer {
			return true
		}
	}
	return false
}

func (r Rule) appliesToKind(kind string) bool {
	if len(r.Kinds) == 0 {
		return true
	}
	for _, k := range r.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
