package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/trustbuild-labs/trustbuild-go/internal/governance"
	"github.com/trustbuild-labs/trustbuild-go/internal/orchestrator"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/textgen"
	"github.com/trustbuild-labs/trustbuild-go/internal/policy"
	"github.com/trustbuild-labs/trustbuild-go/internal/stages"
)

func newTestAPI(t *testing.T) *pipelineAPI {
	t.Helper()

	kb, err := policy.NewKnowledgeBase(policy.Builtin())
	if err != nil {
		t.Fatalf("NewKnowledgeBase() err=%v", err)
	}
	guardrail, err := governance.New(kb, governance.Config{})
	if err != nil {
		t.Fatalf("governance.New() err=%v", err)
	}

	gen := textgen.NewSimulator()
	orch, err := orchestrator.New(
		stages.NewExtractor(gen),
		stages.NewMapper(gen),
		guardrail,
		stages.NewSynthesizer(gen),
		orchestrator.Config{},
	)
	if err != nil {
		t.Fatalf("orchestrator.New() err=%v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newPipelineAPI(logger, orch, "simulation")
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	newTestAPI(t).register(mux)
	return mux
}

func TestRunPipelineEndToEnd(t *testing.T) {
	mux := newTestMux(t)

	body := `{"user_prompt": "HIPAA compliant patient portal storing PHI records"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run-pipeline", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		PipelineID string `json:"pipeline_id"`
		UserPrompt string `json:"user_prompt"`
		Status     string `json:"status"`
		Stages     []struct {
			StageID   int    `json:"stage_id"`
			StageName string `json:"stage_name"`
			Status    string `json:"status"`
		} `json:"stages"`
		DeploymentKit *struct {
			Files []struct {
				Name     string `json:"name"`
				Category string `json:"category"`
			} `json:"files"`
		} `json:"deployment_kit"`
		GovernanceReport *struct {
			Status          string `json:"status"`
			ComplianceScore int    `json:"compliance_score"`
		} `json:"governance_report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.PipelineID == "" {
		t.Fatalf("pipeline_id is empty")
	}
	if resp.Status != "completed" {
		t.Fatalf("status=%q, want completed", resp.Status)
	}
	if len(resp.Stages) != 4 {
		t.Fatalf("stages=%d, want 4", len(resp.Stages))
	}
	if got := resp.Stages[2].Status; got != "corrected" {
		t.Fatalf("governance stage status=%q, want corrected", got)
	}
	if resp.GovernanceReport == nil {
		t.Fatalf("governance_report missing")
	}
	if resp.GovernanceReport.Status != "corrected" {
		t.Fatalf("report status=%q, want corrected", resp.GovernanceReport.Status)
	}
	if resp.GovernanceReport.ComplianceScore != 100 {
		t.Fatalf("compliance_score=%d, want 100", resp.GovernanceReport.ComplianceScore)
	}
	if resp.DeploymentKit == nil || len(resp.DeploymentKit.Files) == 0 {
		t.Fatalf("deployment_kit missing or empty")
	}
}

func TestRunPipelineRejectsBadPrompts(t *testing.T) {
	mux := newTestMux(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty prompt", `{"user_prompt": ""}`},
		{"blank prompt", `{"user_prompt": "   "}`},
		{"oversized prompt", `{"user_prompt": "` + strings.Repeat("x", 4001) + `"}`},
		{"unknown field", `{"prompt": "build a thing"}`},
		{"malformed json", `{"user_prompt": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run-pipeline", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); strings.Contains(ct, "application/json") {
				t.Fatalf("error body content type=%q, want plain text", ct)
			}
		})
	}
}

func TestRootDescriptor(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["service"] != "pipeline" {
		t.Fatalf("service=%q", resp["service"])
	}
	if resp["mode"] != "simulation" {
		t.Fatalf("mode=%q", resp["mode"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("status=%q, want ok", resp["status"])
	}
}

func TestRunArchiveDisabled(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("list status=%d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get status=%d, want 404", rec.Code)
	}
}
