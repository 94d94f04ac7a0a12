package generator

import "strings"

// StructuralScore holds the individual structural compliance checks.
type StructuralScore struct {
	TitleOK            bool
	EnoughFacts        bool
	ConceptsDefined    bool
	ProceduresComplete bool
}

const minFacts = 3

// ComputeStructuralScore evaluates structural compliance for a bundle.
func ComputeStructuralScore(b *ContentBundle) StructuralScore {
	titleLen := len(strings.TrimSpace(b.Title))

	conceptsOK := len(b.Concepts) > 0
	for _, c := range b.Concepts {
		if strings.TrimSpace(c.Term) == "" || len(strings.TrimSpace(c.Definition)) < 10 {
			conceptsOK = false
		}
	}

	// No procedures is fine; a procedure with fewer than two steps is not.
	procOK := true
	for _, p := range b.Procedures {
		if len(p.Steps) < 2 {
			procOK = false
		}
	}

	return StructuralScore{
		TitleOK:            titleLen > 0 && titleLen <= maxTitleLen,
		EnoughFacts:        len(b.Facts) >= minFacts,
		ConceptsDefined:    conceptsOK,
		ProceduresComplete: procOK,
	}
}

// CoverageScore estimates how much of the source vocabulary the bundle
// carries (0.0-1.0).
func CoverageScore(b *ContentBundle, source string) float64 {
	src := tokenize(source)
	if len(src) == 0 {
		return 0
	}

	var sb strings.Builder
	for _, f := range b.Facts {
		sb.WriteString(f.Statement)
		sb.WriteString(" ")
	}
	for _, c := range b.Concepts {
		sb.WriteString(c.Term)
		sb.WriteString(" ")
		sb.WriteString(c.Definition)
		sb.WriteString(" ")
	}
	for _, p := range b.Procedures {
		sb.WriteString(strings.Join(p.Steps, " "))
		sb.WriteString(" ")
	}
	got := tokenize(sb.String())

	covered := 0
	for k := range src {
		if got[k] {
			covered++
		}
	}
	return float64(covered) / float64(len(src))
}

// ComputeQualityScore calculates a composite quality score (0.0-1.0).
//
// Formula: structural * 0.60 + coverage * 0.40
func ComputeQualityScore(structural StructuralScore, coverage float64) float64 {
	// Structural compliance score (4 checks, each worth 0.25)
	structuralScore := 0.0
	if structural.TitleOK {
		structuralScore += 0.25
	}
	if structural.EnoughFacts {
		structuralScore += 0.25
	}
	if structural.ConceptsDefined {
		structuralScore += 0.25
	}
	if structural.ProceduresComplete {
		structuralScore += 0.25
	}

	if coverage < 0 {
		coverage = 0
	}
	if coverage > 1 {
		coverage = 1
	}

	return structuralScore*0.60 + coverage*0.40
}

// ClassifyQuality returns a classification based on the quality score.
// Returns: "reject" (< 0.50), "flagged" (0.50-0.70), "passed" (> 0.70)
func ClassifyQuality(score float64) string {
	if score < 0.50 {
		return "reject"
	}
	if score <= 0.70 {
		return "flagged"
	}
	return "passed"
}
