package mcp

import (
	"encoding/json"
	"testing"
)

func TestSupportedProtocolVersions(t *testing.T) {
	for _, v := range []string{"2025-11-25", "2025-06-18", "2025-03-26"} {
		if !IsSupportedProtocolVersion(v) {
			t.Fatalf("expected %q supported", v)
		}
	}
	if IsSupportedProtocolVersion("2024-01-01") {
		t.Fatal("unexpected version accepted")
	}
	if LatestProtocolVersion != SupportedProtocolVersions[0] {
		t.Fatal("latest version should lead the supported list")
	}
}

func TestLoggingLevelValidation(t *testing.T) {
	valid := []LoggingLevel{
		LoggingLevelDebug, LoggingLevelInfo, LoggingLevelNotice, LoggingLevelWarning,
		LoggingLevelError, LoggingLevelCritical, LoggingLevelAlert, LoggingLevelEmergency,
	}
	for _, l := range valid {
		if !IsValidLoggingLevel(l) {
			t.Fatalf("expected %q valid", l)
		}
	}
	if IsValidLoggingLevel("verbose") {
		t.Fatal("unexpected level accepted")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	if TaskStatusWorking.Terminal() {
		t.Fatal("working is not terminal")
	}
	for _, s := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("%q should be terminal", s)
		}
	}
}

func TestToolSerializationShape(t *testing.T) {
	tool := Tool{
		Name:        "read_file",
		Description: "Read a file",
		InputSchema: ToolInputSchema{
			Type: "object",
			Properties: map[string]SchemaProperty{
				"path": {Type: "string"},
			},
			Required: []string{"path"},
		},
		Annotations: &ToolAnnotations{ReadOnlyHint: true},
		Meta:        map[string]any{"ui": map[string]any{"resourceUri": "ui://read_file"}},
	}

	b, err := json.Marshal(tool)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["name"] != "read_file" {
		t.Fatalf("unexpected name: %v", decoded["name"])
	}
	if _, ok := decoded["_meta"]; !ok {
		t.Fatal("_meta passthrough dropped")
	}
	ann, ok := decoded["annotations"].(map[string]any)
	if !ok || ann["readOnlyHint"] != true {
		t.Fatalf("annotations not serialized: %v", decoded["annotations"])
	}
	if _, ok := decoded["outputSchema"]; ok {
		t.Fatal("absent outputSchema should be omitted")
	}
}
