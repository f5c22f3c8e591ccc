package rules

import (
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
)

// rulesFile is the YAML schema for custom rule files:
//
//	rules:
//	  - name: employee_id
//	    display_name: Employee ID
//	    confidence: medium
//	    pattern: 'EMP-\d{6}'
type rulesFile struct {
	Rules []ruleEntry `yaml:"rules" json:"rules"`
}

type ruleEntry struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Confidence  string `yaml:"confidence" json:"confidence"`
	Pattern     string `yaml:"pattern" json:"pattern"`
}

// LoadFile registers the custom rules from a YAML file into the
// catalog. The whole file is rejected if any entry fails validation,
// so a typo cannot silently drop one rule from a compliance scan.
func LoadFile(path string, catalog *Catalog) error {
	var file rulesFile
	if err := config.Load(path, &file); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to load rules file").
			WithDetail("path", path)
	}

	for _, entry := range file.Rules {
		if err := ValidatePattern(entry.Pattern); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid rule in rules file").
				WithDetail("path", path).
				WithDetail("rule", entry.Name)
		}
		switch Confidence(entry.Confidence) {
		case "", ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		default:
			return errors.New(errors.ErrorTypeConfig, "invalid confidence tier in rules file").
				WithDetail("rule", entry.Name).
				WithDetail("confidence", entry.Confidence)
		}
	}
	for _, entry := range file.Rules {
		if err := catalog.AddCustom(entry.Name, entry.Pattern, entry.DisplayName, Confidence(entry.Confidence)); err != nil {
			return err
		}
	}
	return nil
}
