package search

import (
	"fmt"
	"strings"

	"securehr/internal/cv"
)

const maxFilterSkills = 10

// Filters is the closed set of recognized search filters. Unknown or
// mistyped filter keys fail validation instead of being silently ignored.
type Filters struct {
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Location        string   `json:"location,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	MinScore        float64  `json:"min_score,omitempty"`
}

// Validate normalizes the filters in place and rejects unrecognized values.
func (f *Filters) Validate() error {
	if f == nil {
		return nil
	}

	f.ExperienceLevel = strings.ToLower(strings.TrimSpace(f.ExperienceLevel))
	if f.ExperienceLevel != "" && !cv.ValidExperienceLevel(f.ExperienceLevel) {
		return fmt.Errorf("%w: experience_level %q (expected junior, mid or senior)", ErrInvalidFilter, f.ExperienceLevel)
	}

	f.Location = strings.TrimSpace(f.Location)

	var skills []string
	for _, s := range f.Skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			skills = append(skills, s)
		}
	}
	if len(skills) > maxFilterSkills {
		return fmt.Errorf("%w: at most %d skills", ErrInvalidFilter, maxFilterSkills)
	}
	f.Skills = skills

	if f.MinScore < 0 || f.MinScore > 1 {
		return fmt.Errorf("%w: min_score must be within [0,1]", ErrInvalidFilter)
	}
	return nil
}

func (f *Filters) empty() bool {
	return f == nil ||
		(f.ExperienceLevel == "" && f.Location == "" && len(f.Skills) == 0 && f.MinScore == 0)
}
