package profile

import (
	"errors"
	"strings"
)

// ExperienceLevel is the seniority picked during onboarding.
type ExperienceLevel string

const (
	EntryLevel  ExperienceLevel = "entry"
	MidLevel    ExperienceLevel = "mid"
	SeniorLevel ExperienceLevel = "senior"
)

// Levels lists the experience levels offered by the onboarding form.
func Levels() []ExperienceLevel {
	return []ExperienceLevel{EntryLevel, MidLevel, SeniorLevel}
}

// Label returns the human readable form used in prompts and the UI.
func (l ExperienceLevel) Label() string {
	switch l {
	case EntryLevel:
		return "Entry Level"
	case MidLevel:
		return "Mid Level"
	case SeniorLevel:
		return "Senior Level"
	default:
		return ""
	}
}

// ParseLevel accepts both the short keys and the labels shown in the form.
func ParseLevel(raw string) (ExperienceLevel, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimSuffix(normalized, " level")
	switch normalized {
	case "entry":
		return EntryLevel, true
	case "mid":
		return MidLevel, true
	case "senior":
		return SeniorLevel, true
	default:
		return "", false
	}
}

var (
	ErrNameRequired     = errors.New("name is required")
	ErrLocationRequired = errors.New("location is required")
	ErrInterestRequired = errors.New("job interest is required")
	ErrUnknownLevel     = errors.New("unknown experience level")
)

// Profile captures what the user told us during onboarding.
type Profile struct {
	Name            string          `json:"name"`
	Location        string          `json:"location"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel"`
	JobInterest     string          `json:"jobInterest"`
}

// Normalize trims free-text fields and resolves the experience level.
func (p Profile) Normalize() (Profile, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Location = strings.TrimSpace(p.Location)
	p.JobInterest = strings.TrimSpace(p.JobInterest)

	switch {
	case p.Name == "":
		return Profile{}, ErrNameRequired
	case p.Location == "":
		return Profile{}, ErrLocationRequired
	case p.JobInterest == "":
		return Profile{}, ErrInterestRequired
	}

	if p.ExperienceLevel == "" {
		p.ExperienceLevel = EntryLevel
		return p, nil
	}
	level, ok := ParseLevel(string(p.ExperienceLevel))
	if !ok {
		return Profile{}, ErrUnknownLevel
	}
	p.ExperienceLevel = level
	return p, nil
}
