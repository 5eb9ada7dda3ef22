package domain

import "testing"

func TestManifestCloneIsDeep(t *testing.T) {
	manifest := ArchitectureManifest{
		ProjectName: "patient-portal",
		Sensitivity: SensitivityPHI,
		Frameworks:  []string{"HIPAA"},
		Services: []ServiceComponent{
			{Name: "Databases for PostgreSQL", ServiceID: "databases-for-postgresql", Role: RoleDatabase, Region: "us-south", Plan: "standard"},
		},
		Networking: Settings{NetworkVPCEnabled: false},
		Security:   Settings{SecurityEncryptionInTransit: true},
	}

	clone := manifest.Clone()
	clone.Services[0].Plan = "dedicated"
	clone.Networking[NetworkVPCEnabled] = true
	clone.Frameworks[0] = "GDPR"

	if manifest.Services[0].Plan != "standard" {
		t.Fatalf("clone aliased services: %q", manifest.Services[0].Plan)
	}
	if manifest.Networking.Enabled(NetworkVPCEnabled) {
		t.Fatalf("clone aliased networking settings")
	}
	if manifest.Frameworks[0] != "HIPAA" {
		t.Fatalf("clone aliased frameworks: %q", manifest.Frameworks[0])
	}
}

func TestManifestHasRole(t *testing.T) {
	manifest := ArchitectureManifest{
		Services: []ServiceComponent{
			{Name: "Code Engine", Role: RoleHosting},
			{Name: "Cloudant", Role: "Database"},
		},
	}
	if !manifest.HasRole(RoleDatabase) {
		t.Fatalf("HasRole(database)=false")
	}
	if manifest.HasRole(RoleStorage) {
		t.Fatalf("HasRole(storage)=true")
	}
}

func TestNormalizeSensitivity(t *testing.T) {
	cases := []struct {
		in   string
		want Sensitivity
	}{
		{"PHI", SensitivityPHI},
		{"phi", SensitivityPHI},
		{"public", SensitivityNone},
		{"", SensitivityNone},
		{"pii", SensitivityPII},
		{"classified", ""},
	}
	for _, tc := range cases {
		if got := NormalizeSensitivity(tc.in); got != tc.want {
			t.Fatalf("NormalizeSensitivity(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestManifestValidate(t *testing.T) {
	manifest := ArchitectureManifest{
		ProjectName: "shop",
		Sensitivity: SensitivityNone,
		Services:    []ServiceComponent{{Name: "Code Engine", Role: RoleHosting}},
	}
	if err := manifest.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	manifest.Services = append(manifest.Services, ServiceComponent{Name: "Cloudant"})
	if err := manifest.Validate(); err == nil {
		t.Fatalf("expected missing role error")
	}
}
