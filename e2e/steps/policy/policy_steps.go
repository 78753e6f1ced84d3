package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any) error
	SendTCP(command string) error
	GetResponseField(path string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Set(name, value string)
	Expand(s string) string
}

// RegisterSteps registers policy store step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &policySteps{tc: tc}

	// Fixtures
	ctx.Step(`^a fresh name "([^"]*)"$`, steps.freshName)

	// HTTP API
	ctx.Step(`^I publish policy "([^"]*)" for device "([^"]*)"$`, steps.publishPolicy)
	ctx.Step(`^I retrieve policy "([^"]*)"$`, steps.retrievePolicy)
	ctx.Step(`^I list the policies of device "([^"]*)" with policy store id "([^"]*)"$`, steps.listPolicies)
	ctx.Step(`^I clear the policies of device "([^"]*)"$`, steps.clearPolicies)

	// TCP protocol
	ctx.Step(`^I send the TCP command:$`, steps.sendTCPCommand)

	// Assertions
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response message should be "([^"]*)"$`, steps.messageShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the policy list should be "([^"]*)"$`, steps.policyListShouldBe)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, steps.saveField)
	ctx.Step(`^the response should be:$`, steps.responseShouldBe)
}

type policySteps struct {
	tc TestContext
}

// freshName binds name to a value unique to this run, since the ledger
// keeps every bundle ever published.
func (s *policySteps) freshName(ctx context.Context, name string) error {
	s.tc.Set(name, name+"-"+strconv.FormatInt(time.Now().UnixNano(), 36))
	return nil
}

func (s *policySteps) publishPolicy(ctx context.Context, policyID, deviceID string) error {
	body := map[string]any{
		"policy":    map[string]any{"policy_id": s.tc.Expand(policyID), "effect": "allow"},
		"owner":     "e2e-owner",
		"deviceId":  s.tc.Expand(deviceID),
		"signature": "e2e-signature",
	}
	return s.tc.Do(http.MethodPost, "/policies", body)
}

func (s *policySteps) retrievePolicy(ctx context.Context, policyID string) error {
	return s.tc.Do(http.MethodGet, "/policies/"+policyID, nil)
}

func (s *policySteps) listPolicies(ctx context.Context, deviceID, policyStoreID string) error {
	return s.tc.Do(http.MethodGet, "/devices/"+deviceID+"/policies?policyStoreId="+policyStoreID, nil)
}

func (s *policySteps) clearPolicies(ctx context.Context, deviceID string) error {
	return s.tc.Do(http.MethodDelete, "/devices/"+deviceID+"/policies", nil)
}

func (s *policySteps) sendTCPCommand(ctx context.Context, command *godog.DocString) error {
	return s.tc.SendTCP(command.Content)
}

func (s *policySteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *policySteps) messageShouldBe(ctx context.Context, expected string) error {
	return s.fieldShouldBe(ctx, "message", expected)
}

func (s *policySteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	expected = s.tc.Expand(expected)
	if got := fmt.Sprint(value); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *policySteps) policyListShouldBe(ctx context.Context, expected string) error {
	value, err := s.tc.GetResponseField("data.list")
	if err != nil {
		return err
	}
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("data.list is not a list: %v", value)
	}
	got := make([]string, 0, len(items))
	for _, item := range items {
		got = append(got, fmt.Sprint(item))
	}
	want := []string{}
	if expected = s.tc.Expand(expected); expected != "" {
		want = strings.Split(expected, ",")
	}
	if !reflect.DeepEqual(got, want) {
		return fmt.Errorf("expected policy list %v, got %v", want, got)
	}
	return nil
}

func (s *policySteps) saveField(ctx context.Context, field, name string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	s.tc.Set(name, fmt.Sprint(value))
	return nil
}

func (s *policySteps) responseShouldBe(ctx context.Context, expected *godog.DocString) error {
	var want, got any
	if err := json.Unmarshal([]byte(s.tc.Expand(expected.Content)), &want); err != nil {
		return fmt.Errorf("expected body is not JSON: %w", err)
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &got); err != nil {
		return fmt.Errorf("response is not JSON: %s", s.tc.GetLastResponseBody())
	}
	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("expected %v, got %v", want, got)
	}
	return nil
}
