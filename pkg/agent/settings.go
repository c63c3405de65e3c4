package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/types"
)

// Settings are the scalar keys kept beside the vfs: namespace in persistent
// storage. They carry panel preferences across restarts; the storage relay
// ignores them because they are not domain records.
const (
	// SettingsModelKey optionally overrides the configured model name.
	// The launcher reads it before constructing the provider.
	SettingsModelKey = "settings:model"

	settingsModePrefix = "settings:mode:"
)

func settingsModeKey(tabID int) string {
	return fmt.Sprintf("%s%d", settingsModePrefix, tabID)
}

// defaultMode returns the persisted mode default for a tab. Missing,
// unreadable, or stale values fall back to plan mode.
func (m *Manager) defaultMode(ctx context.Context, tabID int) types.Mode {
	raw, ok, err := m.store.Storage().Get(ctx, settingsModeKey(tabID))
	if err != nil || !ok {
		return types.ModePlan
	}
	var mode types.Mode
	if err := json.Unmarshal(raw, &mode); err != nil || !mode.Valid() {
		return types.ModePlan
	}
	return mode
}

// persistMode records a tab's mode so future sessions for the tab start in
// it. Failures are logged and otherwise ignored; the in-memory session
// already switched.
func (m *Manager) persistMode(ctx context.Context, tabID int, mode types.Mode) {
	raw, err := json.Marshal(mode)
	if err != nil {
		return
	}
	if err := m.store.Storage().Set(ctx, settingsModeKey(tabID), raw); err != nil {
		agentDebugLog.Debugf("persist mode for tab %d: %v", tabID, err)
	}
}

// ModelOverride reads the persisted model override, returning "" when none
// is set.
func ModelOverride(ctx context.Context, storage host.Storage) string {
	raw, ok, err := storage.Get(ctx, SettingsModelKey)
	if err != nil || !ok {
		return ""
	}
	var model string
	if err := json.Unmarshal(raw, &model); err != nil {
		return ""
	}
	return model
}
