package chapters

import (
	"regexp"
	"strings"
)

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^chapter\s+\d+$`),
	regexp.MustCompile(`(?i)^chapter\s+(one|two|three|four|five|six|seven|eight|nine|ten)$`),
	regexp.MustCompile(`(?i)^part\s+\d+$`),
	regexp.MustCompile(`(?i)^section\s+\d+$`),
	regexp.MustCompile(`(?i)^segment\s+\d+$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^\.\.\.$`),
}

// AnalysisResult summarizes how many chapter titles carry no content signal.
type AnalysisResult struct {
	Total          int     `json:"total"`
	GenericCount   int     `json:"genericCount"`
	GenericPercent float64 `json:"genericPercent"`
	LowQuality     bool    `json:"lowQuality"`
}

// IsGenericName returns true if the chapter title is a placeholder such as
// "Chapter 3" or the "..." from the prompt's schema example.
func IsGenericName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}

	for _, pattern := range genericPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// AnalyzeChapters reports placeholder title statistics. A model result where
// more than half the titles are placeholders is flagged as low quality.
func AnalyzeChapters(chs []Chapter) AnalysisResult {
	if len(chs) == 0 {
		return AnalysisResult{}
	}

	generic := 0
	for _, ch := range chs {
		if IsGenericName(ch.Title) {
			generic++
		}
	}

	percent := float64(generic) / float64(len(chs))

	return AnalysisResult{
		Total:          len(chs),
		GenericCount:   generic,
		GenericPercent: percent,
		LowQuality:     percent > 0.5,
	}
}
