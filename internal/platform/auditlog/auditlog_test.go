package auditlog

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventValidate(t *testing.T) {
	event := Event{
		OccurredAt:   time.Now().UTC(),
		Actor:        "pipeline",
		Action:       ActionPipelineCompleted,
		ResourceType: ResourcePipelineRun,
		ResourceID:   "run-1",
	}
	if err := event.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	missing := event
	missing.Action = ""
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected error for missing action")
	}
}

func TestComputeIntegrityIsStable(t *testing.T) {
	event := Event{
		OccurredAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Actor:        "pipeline",
		Action:       ActionGovernanceCorrected,
		ResourceType: ResourcePipelineRun,
		ResourceID:   "run-1",
	}
	payload, _ := json.Marshal(map[string]any{"compliance_score": 100})

	a, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a != b {
		t.Fatalf("digest not stable")
	}

	event.ResourceID = "run-2"
	c, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a == c {
		t.Fatalf("digest ignores event content")
	}
}
