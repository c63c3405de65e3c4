package panel

import (
	"strings"
	"testing"

	"github.com/entrhq/webforge/pkg/types"
)

func TestTopStatusReflectsTabAndMode(t *testing.T) {
	m := testModel(t)
	m.mode = types.ModeExecute

	status := m.buildTopStatus()
	if !strings.Contains(status, "Tab 3") || !strings.Contains(status, "execute") {
		t.Errorf("status = %q", status)
	}
	if strings.Contains(status, "awaiting approval") {
		t.Error("approval note should only appear while latched")
	}

	m.awaitingApproval = true
	if !strings.Contains(m.buildTopStatus(), "awaiting approval") {
		t.Error("approval note missing while latched")
	}
}

func TestApprovalBannerOnlyWhileLatched(t *testing.T) {
	m := testModel(t)
	if m.buildApprovalBanner() != "" {
		t.Error("banner should be empty without a pending plan")
	}
	m.awaitingApproval = true
	if !strings.Contains(m.buildApprovalBanner(), "/approve") {
		t.Error("banner should tell the user how to proceed")
	}
}

func TestTokenDisplay(t *testing.T) {
	m := testModel(t)
	if got := m.buildTokenDisplay(); got != "WebForge Agent" {
		t.Errorf("placeholder = %q", got)
	}

	m.contextTokens = 4200
	m.contextWindow = 200000
	got := m.buildTokenDisplay()
	if !strings.Contains(got, "4.2K") || !strings.Contains(got, "200.0K") {
		t.Errorf("token display = %q", got)
	}
}

func TestToastOverlaySplicesAboveInput(t *testing.T) {
	base := strings.Repeat("base line\n", 19) + "base line"
	toast := "TOAST ONE\nTOAST TWO"

	out := renderToastOverlay(base, toast)
	lines := strings.Split(out, "\n")
	if len(lines) != 20 {
		t.Fatalf("overlay changed line count: %d", len(lines))
	}
	if !strings.Contains(out, "TOAST ONE") || !strings.Contains(out, "TOAST TWO") {
		t.Errorf("toast content missing: %q", out)
	}
	if renderToastOverlay(base, "") != base {
		t.Error("empty toast should leave the view untouched")
	}
}
