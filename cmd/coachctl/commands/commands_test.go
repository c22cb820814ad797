package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benvon/smart-coach/internal/models"
)

const testCatalog = `services:
  - name: local
    kind: simulated
    reliability: 0.9
    capabilities:
      - name: text_generation
        proficiency: 0.8
  - name: backup
    kind: simulated
    fallbacks: [local]
    capabilities: [{name: text_generation, proficiency: 0.5}]
templates:
  - id: recovery-basic
    name: Recovery
    category: recovery
    body: "Plan a recovery day for {{user_input}}"
    effectiveness: 0.6
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCatalogValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		catalog string
		want    string
		wantErr string
	}{
		{name: "valid", catalog: testCatalog, want: "catalog ok: 2 services, 1 templates"},
		{name: "invalid", catalog: "services:\n  - name: a\n    kind: simulated\n", wantErr: "capabilities"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := execute(t, "catalog", "validate", "--file", writeCatalog(t, tt.catalog))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("execute() error = %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestCatalogList(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "catalog", "list", "-f", writeCatalog(t, testCatalog))
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	for _, want := range []string{"local\tkind=simulated", "text_generation=0.80", "fallbacks=local", "template recovery-basic"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPromptPreview(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "prompt", "preview", "--type", "training_guidance", "--input", "leg day", "--expertise", "advanced")
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	var prompt models.GeneratedPrompt
	if err := json.Unmarshal([]byte(out), &prompt); err != nil {
		t.Fatalf("output is not a prompt: %v\n%s", err, out)
	}
	if prompt.TemplateID == "" || prompt.Prompt == "" {
		t.Errorf("prompt = %+v", prompt)
	}
}

func TestPromptPreview_UnknownType(t *testing.T) {
	t.Parallel()

	if _, err := execute(t, "prompt", "preview", "--type", "astrology"); err == nil {
		t.Error("expected error for unknown request type")
	}
}

func TestRun_Simulated(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "run", "--simulated", "--type", "motivation", "--text", "I skipped two sessions", "--readiness", "0.8")
	if err != nil {
		t.Fatalf("execute() error = %v\n%s", err, out)
	}
	var resp models.OrchestrationResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not a response: %v\n%s", err, out)
	}
	if !resp.Success || resp.RequestID == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestValidateProfile(t *testing.T) {
	t.Parallel()

	if err := validateProfile(&models.Profile{UserID: "u", Expertise: models.ExpertiseExpert}); err != nil {
		t.Errorf("validateProfile() error = %v", err)
	}
	if err := validateProfile(&models.Profile{UserID: "u", Expertise: "wizard"}); !models.IsValidationError(err) {
		t.Errorf("validateProfile() error = %v, want ValidationError", err)
	}
}

func TestDatabaseCommandsRequireURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	for _, args := range [][]string{
		{"migrate"},
		{"profile", "get", "u1"},
		{"profile", "events", "usage"},
	} {
		if _, err := execute(t, args...); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Errorf("%v: error = %v, want DATABASE_URL error", args, err)
		}
	}
}
