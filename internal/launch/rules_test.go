package launch

import (
	"testing"

	"github.com/nickheyer/launcherd/internal/loader"
)

func TestEvaluateRulesNoRulesAllowed(t *testing.T) {
	if !EvaluateRules(nil, nil) {
		t.Error("absent rules should mean allowed")
	}
}

func TestEvaluateRulesLastMatchWins(t *testing.T) {
	rules := []loader.Rule{
		{Action: "allow"},
		{Action: "disallow", OS: &loader.OSRule{Name: CurrentOSName()}},
	}
	if EvaluateRules(rules, nil) {
		t.Error("last matching rule (disallow) should win")
	}
}

func TestEvaluateRulesOSMismatchSkipped(t *testing.T) {
	rules := []loader.Rule{
		{Action: "allow"},
		{Action: "disallow", OS: &loader.OSRule{Name: "not-" + CurrentOSName()}},
	}
	if !EvaluateRules(rules, nil) {
		t.Error("rule for a different OS should not match")
	}
}

func TestEvaluateRulesFeatureMatch(t *testing.T) {
	rules := []loader.Rule{
		{Action: "allow"},
		{Action: "disallow", Features: map[string]any{"is_demo_user": true}},
	}
	if EvaluateRules(rules, map[string]bool{"is_demo_user": true}) {
		t.Error("feature-matching disallow rule should win")
	}
	if !EvaluateRules(rules, map[string]bool{"is_demo_user": false}) {
		t.Error("feature-mismatching rule should not apply")
	}
}
