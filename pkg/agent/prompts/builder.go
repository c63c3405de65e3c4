// Package prompts assembles the mode-specific system prompts for agent
// runs. The sections are fixed constants; the builder stitches them
// together with the per-run page context.
package prompts

import (
	"fmt"
	"strings"

	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

// Builder constructs a system prompt for one agent run.
type Builder struct {
	mode               types.Mode
	location           vfs.Location
	pageTitle          string
	customInstructions string
}

// NewBuilder creates a builder for the given mode.
func NewBuilder(mode types.Mode) *Builder {
	return &Builder{mode: mode}
}

// WithLocation sets the attached page's location, which becomes the working
// directory context in the prompt.
func (b *Builder) WithLocation(loc vfs.Location) *Builder {
	b.location = loc
	return b
}

// WithPageTitle sets the attached page's title.
func (b *Builder) WithPageTitle(title string) *Builder {
	b.pageTitle = title
	return b
}

// WithCustomInstructions adds user-provided instructions from settings.
func (b *Builder) WithCustomInstructions(instructions string) *Builder {
	b.customInstructions = instructions
	return b
}

// Build assembles the complete system prompt.
func (b *Builder) Build() string {
	var out strings.Builder

	out.WriteString(IdentityPrompt)
	out.WriteString("\n\n")

	if b.location.Domain != "" {
		out.WriteString("<current_page>\n")
		fmt.Fprintf(&out, "Domain: %s\n", b.location.Domain)
		fmt.Fprintf(&out, "Path: %s\n", b.location.URLPath)
		if b.pageTitle != "" {
			fmt.Fprintf(&out, "Title: %s\n", b.pageTitle)
		}
		fmt.Fprintf(&out, "Working directory: %s\n", b.location.Dir())
		out.WriteString("</current_page>\n\n")
	}

	out.WriteString(FilesystemPrompt)
	out.WriteString("\n\n")
	out.WriteString(VersioningPrompt)
	out.WriteString("\n\n")
	out.WriteString(FeedbackPrompt)
	out.WriteString("\n\n")
	out.WriteString(TaskManagementPrompt)
	out.WriteString("\n\n")

	switch b.mode {
	case types.ModePlan:
		out.WriteString(PlanModePrompt)
	default:
		out.WriteString(ExecuteModePrompt)
	}

	if b.customInstructions != "" {
		out.WriteString("\n\n<custom_instructions>\n")
		out.WriteString(b.customInstructions)
		out.WriteString("\n</custom_instructions>")
	}

	return out.String()
}
