package prompts

import (
	"strings"
	"testing"

	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

func TestBuildPlanPrompt(t *testing.T) {
	prompt := NewBuilder(types.ModePlan).
		WithLocation(vfs.Location{Domain: "shop.test", URLPath: "/cart"}).
		WithPageTitle("Cart — Shop").
		Build()

	if !strings.Contains(prompt, "<plan_mode>") {
		t.Error("plan prompt should carry the plan mode section")
	}
	if strings.Contains(prompt, "<execute_mode>") {
		t.Error("plan prompt must not carry the execute section")
	}
	if !strings.Contains(prompt, "plan.md") {
		t.Error("plan prompt should name the plan file")
	}
	if !strings.Contains(prompt, "Working directory: /shop.test/cart") {
		t.Error("prompt should state the working directory")
	}
	if !strings.Contains(prompt, "Cart — Shop") {
		t.Error("prompt should carry the page title")
	}
}

func TestBuildExecutePrompt(t *testing.T) {
	prompt := NewBuilder(types.ModeExecute).
		WithLocation(vfs.Location{Domain: "shop.test", URLPath: "/"}).
		Build()

	if !strings.Contains(prompt, "<execute_mode>") {
		t.Error("execute prompt should carry the execute section")
	}
	if strings.Contains(prompt, "<plan_mode>") {
		t.Error("execute prompt must not carry the plan section")
	}
	if !strings.Contains(prompt, "Working directory: /shop.test") {
		t.Error("root path should collapse to the bare domain directory")
	}
}

func TestVersionGuidancePresentInBothModes(t *testing.T) {
	for _, mode := range []types.Mode{types.ModePlan, types.ModeExecute} {
		prompt := NewBuilder(mode).Build()
		if !strings.Contains(prompt, "VERSION_MISMATCH") {
			t.Errorf("%s prompt is missing the version mismatch guidance", mode)
		}
		if !strings.Contains(prompt, "expected_version") {
			t.Errorf("%s prompt does not explain expected_version", mode)
		}
	}
}

func TestCustomInstructionsAppended(t *testing.T) {
	prompt := NewBuilder(types.ModeExecute).
		WithCustomInstructions("Never touch the checkout form.").
		Build()

	if !strings.Contains(prompt, "<custom_instructions>") {
		t.Error("custom instructions section missing")
	}
	if !strings.Contains(prompt, "Never touch the checkout form.") {
		t.Error("custom instruction text missing")
	}
	idx := strings.Index(prompt, "<custom_instructions>")
	if idx < strings.Index(prompt, "<execute_mode>") {
		t.Error("custom instructions should come after the mode section")
	}
}

func TestPromptWithoutLocationOmitsPageSection(t *testing.T) {
	prompt := NewBuilder(types.ModePlan).Build()
	if strings.Contains(prompt, "<current_page>") {
		t.Error("prompt without a location should omit the page section")
	}
}
