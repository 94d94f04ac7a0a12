package generator

import "fmt"

const (
	sourceOpenTag  = "<source>"
	sourceCloseTag = "</source>"
)

func ContentSystemPrompt() string {
	return `You are an experienced instructional designer. You turn raw study notes into material for a mastery-based learning game in which a learner climbs from simple recall to creating new work with the ideas.

Break the source into three kinds of items:

FACTS:
- Single, self-contained statements that can be checked as true or false
- One idea per fact, at most two sentences
- An optional short explanation of why the fact matters
- No two facts should restate the same idea

CONCEPTS:
- Terms a learner must be able to define and recognize
- The definition must stand on its own without the source text
- Prefer the source's own vocabulary

PROCEDURES:
- Ordered steps for doing something the source describes
- At least two steps each, written as short imperative sentences
- Omit this section (empty array) when the source describes no process

GENERAL RULES:
- Use only what the source says. Do not add outside knowledge.
- Keep the title under 120 characters.
- Write in the language of the source.

You must respond with valid JSON only. No markdown, no explanation outside the JSON.`
}

func BuildContentUserPrompt(text string) string {
	return fmt.Sprintf(`Turn the study notes between the source tags into a content bundle.

%s
%s
%s

Respond with this exact JSON structure:
{
  "title": "...",
  "facts": [
    {"statement": "...", "explanation": "..."}
  ],
  "concepts": [
    {"term": "...", "definition": "..."}
  ],
  "procedures": [
    {"name": "...", "steps": ["...", "..."]}
  ]
}

Requirements:
- Between 3 and 12 facts when the source supports them
- Every concept that a fact relies on should appear in "concepts"
- Use an empty array for any section the source does not support`,
		sourceOpenTag, text, sourceCloseTag)
}
