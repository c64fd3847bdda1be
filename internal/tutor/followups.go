package tutor

import (
	"github.com/samber/lo"

	"github.com/genetics-tutor/backend/internal/response"
)

const suggestionCount = 2

var tierQuestions = map[response.Tier][]string{
	response.TierBeginner: {
		"What is the difference between DNA and RNA?",
		"What is a gene?",
		"How do cells copy their DNA?",
		"What are chromosomes made of?",
	},
	response.TierIntermediate: {
		"How is a gene turned into a protein?",
		"What happens when a mutation occurs in a gene?",
		"How do dominant and recessive alleles interact?",
		"What role do promoters play in transcription?",
	},
	response.TierAdvanced: {
		"How do enhancers regulate genes from far away?",
		"What repair pathways fix double-strand breaks?",
		"How is DNA methylation maintained through cell division?",
		"How does CRISPR-Cas9 recognize its target sequence?",
	},
}

var topicQuestions = map[string][]string{
	"dna_structure":         {"Why does adenine pair only with thymine?"},
	"dna_replication":       {"Why is the lagging strand made in fragments?"},
	"transcription":         {"How does RNA polymerase know where a gene starts?"},
	"translation":           {"What does a tRNA molecule carry?"},
	"gene_regulation":       {"How does the lac operon respond to lactose?"},
	"mutations":             {"What is the difference between a missense and a nonsense mutation?"},
	"genetic_recombination": {"How does crossing over increase genetic diversity?"},
	"mendelian_inheritance": {"What ratio do you expect from crossing two heterozygotes?"},
	"gene_editing":          {"How does the guide RNA direct Cas9?"},
	"epigenetics":           {"Can epigenetic marks be inherited?"},
}

// suggestQuestions returns exactly two follow-ups: questions for the topics
// used first, then the tier pool rotated by turn.
func suggestQuestions(topicsUsed []string, tier response.Tier, turn int) []string {
	var candidates []string
	for _, id := range topicsUsed {
		candidates = append(candidates, topicQuestions[id]...)
	}

	pool := tierQuestions[tier]
	for i := range pool {
		candidates = append(candidates, pool[(turn+i)%len(pool)])
	}

	candidates = lo.Uniq(candidates)
	return candidates[:suggestionCount]
}
