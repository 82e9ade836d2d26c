package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orchat/model"
)

// SanitizeFilename removes or replaces characters that are invalid in
// filenames.
func SanitizeFilename(name string) string {
	for _, bad := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " ", "\n", "\r"} {
		name = strings.ReplaceAll(name, bad, "-")
	}

	name = strings.Trim(name, "-.")

	if len(name) > 50 {
		name = name[:50]
	}

	if name == "" {
		name = "conversation"
	}

	return name
}

// GenerateExportPath generates a default export path for a conversation.
func GenerateExportPath(title string) string {
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir = os.Getenv("USERPROFILE") // Windows fallback
	}

	downloadsDir := filepath.Join(homeDir, "Downloads")
	sanitized := SanitizeFilename(title)
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("orchat-%s-%s.json", sanitized, timestamp)

	return filepath.Join(downloadsDir, filename)
}

// ExportToJSON writes a conversation to a JSON file at the specified path.
func (cs *ConversationStore) ExportToJSON(id string, exportPath string) error {
	conv, err := cs.Load(id)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	return WriteConversationJSON(conv, exportPath)
}

// WriteConversationJSON serializes conv with indentation for readability.
func WriteConversationJSON(conv *model.Conversation, exportPath string) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// 0600 - exports contain conversation history
	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
