package cv

import (
	"regexp"
	"strconv"
	"strings"
)

// Coarse, non-PII tags stored next to the vector so searches can pre-filter
// without touching CV text. Keyword matching on purpose: the tags only need
// to be broad buckets, and nothing sensitive may leak into index metadata.

// Experience levels recognized across the system.
const (
	LevelJunior = "junior"
	LevelMid    = "mid"
	LevelSenior = "senior"
)

// skillKeywords is the allow-list of skill tags. Matching is
// case-insensitive on word boundaries, so "Go" inside "Google" or "Java"
// inside "JavaScript" does not tag.
var skillKeywords = []string{
	"Go", "Golang", "Python", "Java", "JavaScript", "TypeScript",
	"React", "Vue", "Angular", "Node.js", "Docker", "Kubernetes",
	"PostgreSQL", "MySQL", "MongoDB", "Redis", "AWS", "Azure", "GCP",
	"GraphQL", "REST", "gRPC", "Microservices", "Git", "CI/CD",
	"Terraform", "Linux", "Machine Learning", "Data Science", "DevOps",
}

var skillPatterns = func() []*regexp.Regexp {
	ps := make([]*regexp.Regexp, len(skillKeywords))
	for i, skill := range skillKeywords {
		ps[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(skill) + `\b`)
	}
	return ps
}()

// SkillTags returns the allow-listed skills found in the text, normalized to
// lower case, deduplicated, in allow-list order.
func SkillTags(text string) []string {
	seen := make(map[string]bool)
	var tags []string
	for i, skill := range skillKeywords {
		key := strings.ToLower(skill)
		if seen[key] {
			continue
		}
		if skillPatterns[i].MatchString(text) {
			seen[key] = true
			tags = append(tags, key)
		}
	}
	return tags
}

var yearsPattern = regexp.MustCompile(`(\d{1,2})\+?\s*(?:years?|yrs?)`)

// ExperienceLevel buckets the candidate into junior/mid/senior from a
// years-of-experience mention, falling back to seniority keywords.
func ExperienceLevel(text string) string {
	textLower := strings.ToLower(text)

	maxYears := -1
	for _, m := range yearsPattern.FindAllStringSubmatch(textLower, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxYears && n <= 50 {
			maxYears = n
		}
	}
	if maxYears >= 0 {
		switch {
		case maxYears < 3:
			return LevelJunior
		case maxYears <= 6:
			return LevelMid
		default:
			return LevelSenior
		}
	}

	for _, kw := range []string{"principal", "staff engineer", "senior", "lead"} {
		if strings.Contains(textLower, kw) {
			return LevelSenior
		}
	}
	for _, kw := range []string{"intern", "junior", "graduate", "entry level", "entry-level"} {
		if strings.Contains(textLower, kw) {
			return LevelJunior
		}
	}
	return LevelMid
}

// ValidExperienceLevel reports whether s names a recognized level.
func ValidExperienceLevel(s string) bool {
	switch s {
	case LevelJunior, LevelMid, LevelSenior:
		return true
	}
	return false
}
