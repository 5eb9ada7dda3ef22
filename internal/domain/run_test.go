package domain

import (
	"testing"
	"time"
)

func TestCanTransitionStageStatus(t *testing.T) {
	cases := []struct {
		name    string
		current StageStatus
		next    StageStatus
		want    bool
	}{
		{"pending to running", StageStatusPending, StageStatusRunning, true},
		{"running to passed", StageStatusRunning, StageStatusPassed, true},
		{"running to failed", StageStatusRunning, StageStatusFailed, true},
		{"running to corrected", StageStatusRunning, StageStatusCorrected, true},
		{"pending to passed", StageStatusPending, StageStatusPassed, true},
		{"same status", StageStatusRunning, StageStatusRunning, true},
		{"passed back to running", StageStatusPassed, StageStatusRunning, false},
		{"failed back to pending", StageStatusFailed, StageStatusPending, false},
		{"corrected back to running", StageStatusCorrected, StageStatusRunning, false},
		{"unknown status", StageStatus("bogus"), StageStatusRunning, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransitionStageStatus(tc.current, tc.next); got != tc.want {
				t.Fatalf("CanTransitionStageStatus(%s, %s)=%v, want %v", tc.current, tc.next, got, tc.want)
			}
		})
	}
}

func TestStageStatusTerminal(t *testing.T) {
	for _, status := range []StageStatus{StageStatusPassed, StageStatusFailed, StageStatusCorrected} {
		if !status.Terminal() {
			t.Fatalf("Terminal()=false for %s", status)
		}
	}
	for _, status := range []StageStatus{StageStatusPending, StageStatusRunning} {
		if status.Terminal() {
			t.Fatalf("Terminal()=true for %s", status)
		}
	}
}

func TestPipelineRunValidate(t *testing.T) {
	run := PipelineRun{
		ID:        "a1b2c3",
		Prompt:    "build a patient portal",
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := run.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	missingID := run
	missingID.ID = " "
	if err := missingID.Validate(); err == nil {
		t.Fatalf("expected id error")
	}

	missingPrompt := run
	missingPrompt.Prompt = ""
	if err := missingPrompt.Validate(); err == nil {
		t.Fatalf("expected prompt error")
	}
}

func TestStageByID(t *testing.T) {
	run := PipelineRun{
		Stages: []StageResult{
			{StageID: 1, StageName: "Requirements Extraction", Status: StageStatusPassed},
			{StageID: 2, StageName: "Architecture Mapping", Status: StageStatusFailed},
		},
	}
	stage, ok := run.StageByID(2)
	if !ok {
		t.Fatalf("StageByID(2) not found")
	}
	if stage.Status != StageStatusFailed {
		t.Fatalf("Status=%s, want %s", stage.Status, StageStatusFailed)
	}
	if _, ok := run.StageByID(4); ok {
		t.Fatalf("StageByID(4) should be absent")
	}
}
