package generator

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// ContentBundle is the structured study material generated from raw text.
type ContentBundle struct {
	Title      string      `json:"title"`
	Facts      []Fact      `json:"facts"`
	Concepts   []Concept   `json:"concepts"`
	Procedures []Procedure `json:"procedures"`
}

type Fact struct {
	Statement   string `json:"statement"`
	Explanation string `json:"explanation,omitempty"`
}

type Concept struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type Procedure struct {
	Name  string   `json:"name"`
	Steps []string `json:"steps"`
}

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

const (
	maxTitleLen     = 120
	maxStatementLen = 400
)

func ParseResponse(responseBody string) (*ContentBundle, error) {
	cleaned := stripCodeFences(responseBody)

	var bundle ContentBundle
	if err := json.Unmarshal([]byte(cleaned), &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if err := validateBundle(&bundle); err != nil {
		return nil, err
	}

	return &bundle, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

func validateBundle(b *ContentBundle) error {
	var errs []string

	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" {
		errs = append(errs, "empty title")
	} else if len(b.Title) > maxTitleLen {
		errs = append(errs, fmt.Sprintf("title length %d exceeds %d", len(b.Title), maxTitleLen))
	}

	if len(b.Facts) == 0 && len(b.Concepts) == 0 && len(b.Procedures) == 0 {
		errs = append(errs, "bundle has no facts, concepts or procedures")
	}

	for i, f := range b.Facts {
		n := len(strings.TrimSpace(f.Statement))
		if n == 0 {
			errs = append(errs, fmt.Sprintf("fact %d: empty statement", i+1))
		} else if n > maxStatementLen {
			errs = append(errs, fmt.Sprintf("fact %d: statement length %d exceeds %d", i+1, n, maxStatementLen))
		}
	}

	for i, c := range b.Concepts {
		if strings.TrimSpace(c.Term) == "" {
			errs = append(errs, fmt.Sprintf("concept %d: empty term", i+1))
		}
		if strings.TrimSpace(c.Definition) == "" {
			errs = append(errs, fmt.Sprintf("concept %d: empty definition", i+1))
		}
	}

	for i, p := range b.Procedures {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Sprintf("procedure %d: empty name", i+1))
		}
		if len(p.Steps) < 2 {
			errs = append(errs, fmt.Sprintf("procedure %d: expected at least 2 steps, got %d", i+1, len(p.Steps)))
		}
	}

	// Warn (but don't reject) on near-duplicate facts
	checkFactDiversity(b.Facts)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// checkFactDiversity warns if any two facts share >60% keyword overlap.
func checkFactDiversity(facts []Fact) {
	if len(facts) < 2 {
		return
	}

	tokenSets := make([]map[string]bool, len(facts))
	for i, f := range facts {
		tokenSets[i] = tokenize(f.Statement)
	}

	for i := 0; i < len(facts); i++ {
		for j := i + 1; j < len(facts); j++ {
			overlap := jaccardSimilarity(tokenSets[i], tokenSets[j])
			if overlap > 0.60 {
				log.Printf("[generator] WARNING: facts %d and %d have %.0f%% keyword overlap", i+1, j+1, overlap*100)
			}
		}
	}
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		// Skip very short words (articles, prepositions)
		if len(word) > 3 {
			tokens[word] = true
		}
	}
	return tokens
}

func jaccardSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}
