package handlers

import (
	"net/http"
	"strings"

	"github.com/video-stream/transcut/internal/db"
)

const secretMask = "••••••••"

// settingsKeys defines which keys are allowed and their display metadata
var settingsKeys = []SettingDef{
	{Key: "speech_language", Label: "Default Language", Group: "speech", Placeholder: "auto"},
	{Key: "speech_primary", Label: "Primary Speech Backend", Group: "speech", Placeholder: "backend:1"},
	{Key: "speech_fallback", Label: "Fallback Speech Backend", Group: "speech", Placeholder: "backend:2"},
	{Key: "openai_api_key", Label: "OpenAI API Key", Group: "speech", Placeholder: "sk-...", Secret: true},
	{Key: "export_format", Label: "Export Format", Group: "export", Placeholder: "mp4"},
	{Key: "export_quality", Label: "Export Quality", Group: "export", Placeholder: "high"},
	{Key: "export_resolution", Label: "Export Resolution", Group: "export", Placeholder: "original"},
}

type SettingDef struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Group       string `json:"group"`
	Placeholder string `json:"placeholder"`
	Secret      bool   `json:"secret"`
}

type SettingResponse struct {
	SettingDef
	Value    string `json:"value"`
	HasValue bool   `json:"has_value"`
}

type SettingsHandler struct {
	database *db.Database
	onChange func(keys []string)
}

// NewSettingsHandler builds the handler. onChange, if set, receives the keys
// that were written.
func NewSettingsHandler(database *db.Database, onChange func(keys []string)) *SettingsHandler {
	return &SettingsHandler{database: database, onChange: onChange}
}

// GetSettings returns all settings (secrets are masked)
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.database.GetAllSettings()
	if err != nil {
		writeError(w, err)
		return
	}

	result := make([]SettingResponse, 0, len(settingsKeys))
	for _, def := range settingsKeys {
		val := all[def.Key]
		hasValue := val != ""
		if def.Secret && hasValue {
			val = secretMask
		}
		result = append(result, SettingResponse{SettingDef: def, Value: val, HasValue: hasValue})
	}
	jsonResponse(w, result, http.StatusOK)
}

// UpdateSettings saves settings from the request body. Unknown keys and
// masked secrets are ignored; an empty value clears the setting.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if !decodeJSON(w, r, &updates) {
		return
	}

	allowed := make(map[string]bool)
	for _, def := range settingsKeys {
		allowed[def.Key] = true
	}

	var changed []string
	for key, value := range updates {
		if !allowed[key] || strings.HasPrefix(value, "•") {
			continue
		}
		if err := h.database.SetSetting(key, strings.TrimSpace(value)); err != nil {
			jsonError(w, "failed to save setting: "+key, http.StatusInternalServerError)
			return
		}
		changed = append(changed, key)
	}
	if len(changed) > 0 && h.onChange != nil {
		h.onChange(changed)
	}

	w.WriteHeader(http.StatusNoContent)
}
