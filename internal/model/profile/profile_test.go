package profile

import (
	"errors"
	"testing"
)

func TestNormalizeTrimsAndDefaultsLevel(t *testing.T) {
	p, err := Profile{Name: " Ada ", Location: "London, UK ", JobInterest: " Data Scientist"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}
	if p.Name != "Ada" || p.Location != "London, UK" || p.JobInterest != "Data Scientist" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.ExperienceLevel != EntryLevel {
		t.Fatalf("expected default entry level, got %q", p.ExperienceLevel)
	}
}

func TestNormalizeAcceptsFormLabels(t *testing.T) {
	p, err := Profile{Name: "Ada", Location: "Remote", JobInterest: "ML", ExperienceLevel: "Senior Level"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}
	if p.ExperienceLevel != SeniorLevel {
		t.Fatalf("expected senior, got %q", p.ExperienceLevel)
	}
}

func TestNormalizeRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		in   Profile
		want error
	}{
		{"name", Profile{Location: "x", JobInterest: "y"}, ErrNameRequired},
		{"location", Profile{Name: "x", JobInterest: "y"}, ErrLocationRequired},
		{"interest", Profile{Name: "x", Location: "y"}, ErrInterestRequired},
		{"level", Profile{Name: "x", Location: "y", JobInterest: "z", ExperienceLevel: "guru"}, ErrUnknownLevel},
	}
	for _, tc := range cases {
		if _, err := tc.in.Normalize(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}
