package llm

import (
	"fmt"
	"strings"
)

// TutorContext is what the prompt builder knows about the learner.
type TutorContext struct {
	KnowledgeLevel     float64
	Interests          []string
	RecentUserMessages []string
	StrongConcepts     []string
	CandidateTopics    []string
}

// BuildTutorPrompt returns the system prompt for a level-tailored answer.
func BuildTutorPrompt(tc TutorContext) string {
	var b strings.Builder

	b.WriteString("You are a patient molecular genetics tutor. Answer the student's question accurately and concisely.\n\n")
	fmt.Fprintf(&b, "Student knowledge level: %.1f on a scale from 1 (beginner) to 5 (expert).\n", tc.KnowledgeLevel)

	switch {
	case tc.KnowledgeLevel < 2.5:
		b.WriteString("Use plain language, short sentences and everyday analogies. Define every technical term.\n")
	case tc.KnowledgeLevel > 4:
		b.WriteString("Use precise terminology and include molecular mechanisms, key enzymes and regulatory detail.\n")
	default:
		b.WriteString("Use standard textbook terminology with brief definitions of less common terms.\n")
	}

	if len(tc.StrongConcepts) > 0 {
		fmt.Fprintf(&b, "The student is already comfortable with: %s. Build on these rather than re-explaining them.\n", strings.Join(tc.StrongConcepts, ", "))
	}
	if len(tc.Interests) > 0 {
		fmt.Fprintf(&b, "Topics the student has explored: %s.\n", strings.Join(tc.Interests, ", "))
	}
	if len(tc.CandidateTopics) > 0 {
		fmt.Fprintf(&b, "Relevant catalog topics: %s.\n", strings.Join(tc.CandidateTopics, ", "))
	}
	if len(tc.RecentUserMessages) > 0 {
		b.WriteString("\nRecent questions from the student, oldest first:\n")
		for _, m := range tc.RecentUserMessages {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}

	b.WriteString("\nStay within molecular genetics. If the question is outside that field, say so briefly and suggest a related genetics topic.")
	return b.String()
}
