package types

import (
	"encoding/json"
	"testing"
)

func TestMessageText(t *testing.T) {
	msg := &Message{
		Role: RoleAssistant,
		Content: []ContentBlock{
			TextBlock("I'll look at the page first. "),
			ToolUseBlock("toolu_01", "Read", json.RawMessage(`{"path":"./page.html"}`)),
			TextBlock("Then I'll check the console."),
		},
	}

	got := msg.Text()
	want := "I'll look at the page first. Then I'll check the console."
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestMessageToolUsesPreserveOrder(t *testing.T) {
	msg := NewAssistantMessage([]ContentBlock{
		ToolUseBlock("toolu_01", "Read", json.RawMessage(`{"path":"./page.html"}`)),
		TextBlock("and"),
		ToolUseBlock("toolu_02", "Grep", json.RawMessage(`{"pattern":"ad"}`)),
	})

	uses := msg.ToolUses()
	if len(uses) != 2 {
		t.Fatalf("expected 2 tool uses, got %d", len(uses))
	}
	if uses[0].ID != "toolu_01" || uses[1].ID != "toolu_02" {
		t.Errorf("tool use order not preserved: %q, %q", uses[0].ID, uses[1].ID)
	}
}

func TestToolResultBlockShape(t *testing.T) {
	block := ToolResultBlock("toolu_01", `{"version":3}`, false)

	if block.Type != BlockTypeToolResult {
		t.Errorf("expected tool_result type, got %s", block.Type)
	}
	if block.ToolUseID != "toolu_01" {
		t.Errorf("expected tool_use_id toolu_01, got %s", block.ToolUseID)
	}
	if len(block.Content) != 1 || block.Content[0].Type != BlockTypeText {
		t.Fatalf("expected single text payload block, got %+v", block.Content)
	}
}

func TestScreenshotResultCarriesTextAndImage(t *testing.T) {
	pair := []ContentBlock{
		TextBlock("Screenshot captured"),
		ImageBlock("image/png", "aGVsbG8="),
	}
	block := ToolResultBlocks("toolu_07", pair, false)

	if len(block.Content) != 2 {
		t.Fatalf("expected [text, image] pair, got %d blocks", len(block.Content))
	}
	if block.Content[1].Type != BlockTypeImage {
		t.Errorf("second payload block should be an image, got %s", block.Content[1].Type)
	}
	if block.Content[1].Source == nil || block.Content[1].Source.MediaType != "image/png" {
		t.Errorf("image source not populated: %+v", block.Content[1].Source)
	}
}

func TestCloneIsolatesToolInput(t *testing.T) {
	original := NewAssistantMessage([]ContentBlock{
		ToolUseBlock("toolu_01", "Write", json.RawMessage(`{"path":"./plan.md"}`)),
	})

	clone := original.Clone()
	clone.Content[0].Input[2] = 'X'

	if string(original.Content[0].Input) != `{"path":"./plan.md"}` {
		t.Errorf("clone mutation leaked into original: %s", original.Content[0].Input)
	}
}

func TestBlockWireShapeRoundTrips(t *testing.T) {
	// Blocks returned by the model must survive a store/replay cycle without
	// shape drift, since the next request resends them verbatim.
	msg := NewAssistantMessage([]ContentBlock{
		TextBlock("hiding the banner now"),
		ToolUseBlock("toolu_09", "Edit", json.RawMessage(`{"path":"./page.html","old_string":"<div class=\"ad\">","new_string":""}`)),
	})

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var replayed Message
	if err := json.Unmarshal(raw, &replayed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(replayed.Content) != 2 {
		t.Fatalf("block count changed on replay: %d", len(replayed.Content))
	}
	if replayed.Content[1].Name != "Edit" || replayed.Content[1].ID != "toolu_09" {
		t.Errorf("tool_use identity changed on replay: %+v", replayed.Content[1])
	}
	if string(replayed.Content[1].Input) != string(msg.Content[1].Input) {
		t.Errorf("tool input not byte-faithful after replay")
	}
}
