package e2e

import (
	"github.com/cucumber/godog"

	"frost/e2e/steps/policy"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	policy.RegisterSteps(ctx, tc)
}
