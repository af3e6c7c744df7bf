package matching

import (
	"fmt"
	"strings"

	"github.com/tharun797/deep-matchmaker/internal/profile"
)

const unknownValue = "Unknown"

// buildMatchPrompt renders the natural-language comparison prompt sent to the
// generative scorer. The response contract is a single line of the form
// "Match Score: <float>".
func buildMatchPrompt(a, b *profile.Profile, questions map[string]string) string {
	var sb strings.Builder

	writeProfile(&sb, 1, a, questions)
	sb.WriteString("\n")
	writeProfile(&sb, 2, b, questions)

	sb.WriteString(`
Analyze these profiles for compatibility considering:

1. Gender and sexuality compatibility
2. Age preferences compatibility
3. Personality match based on prompt responses
4. Communication style and values alignment
5. Potential for meaningful connection

Return a compatibility score between 0 and 1, where:

0 = Not compatible at all
1 = Highly compatible

Format your response exactly as:

Match Score: [score]
`)

	return sb.String()
}

func writeProfile(sb *strings.Builder, index int, p *profile.Profile, questions map[string]string) {
	fmt.Fprintf(sb, "Profile %d: {\n", index)

	fmt.Fprintf(sb, "  Age: %s,\n", orUnknownInt(p.Age, p.HasAge))
	fmt.Fprintf(sb, "  Gender: %s,\n", orUnknown(p.Gender))
	fmt.Fprintf(sb, "  Sexuality: %s,\n", orUnknown(p.Sexuality))
	fmt.Fprintf(sb, "  Interested In: %s,\n", orUnknown(strings.Join(p.InterestedIn, ", ")))

	if p.DatingIntention != "" {
		fmt.Fprintf(sb, "  Dating Intention: %s,\n", p.DatingIntention)
	}
	if p.Work != "" || p.JobTitle != "" {
		fmt.Fprintf(sb, "  Work: %s,\n", strings.TrimSpace(p.JobTitle+" "+p.Work))
	}
	if p.EducationLevel != "" {
		fmt.Fprintf(sb, "  Education: %s,\n", p.EducationLevel)
	}
	if len(p.LanguagesSpoken) > 0 {
		fmt.Fprintf(sb, "  Languages: %s,\n", strings.Join(p.LanguagesSpoken, ", "))
	}

	sb.WriteString("\n  Prompt Responses:\n")
	for _, answer := range p.Prompts {
		question := questions[answer.PromptID]
		if question == "" {
			question = answer.Question
		}
		if question == "" {
			question = "Unknown prompt"
		}

		text := answer.Answer
		if text == "" {
			text = "No answer provided"
		}

		fmt.Fprintf(sb, "  Question: %q, Answer: %q\n", question, text)
	}

	sb.WriteString("}\n")
}

func orUnknown(v string) string {
	if v == "" {
		return unknownValue
	}
	return v
}

func orUnknownInt(v int, ok bool) string {
	if !ok {
		return unknownValue
	}
	return fmt.Sprintf("%d", v)
}
