package tutor

import "strings"

type conceptTrigger struct {
	keyword string
	concept string
}

// conceptTriggers maps message keywords to the concept they reinforce.
var conceptTriggers = []conceptTrigger{
	{"mutation", "mutations"},
	{"recombination", "genetic_recombination"},
	{"transcription", "transcription"},
	{"translation", "translation"},
	{"replication", "dna_replication"},
	{"crispr", "gene_editing"},
	{"epigenetic", "epigenetics"},
	{"allele", "mendelian_inheritance"},
	{"promoter", "gene_regulation"},
}

// conceptDeltas returns one increment per concept whose trigger appears in
// message.
func conceptDeltas(message string, delta float64) map[string]float64 {
	folded := strings.ToLower(message)
	out := make(map[string]float64)
	for _, t := range conceptTriggers {
		if strings.Contains(folded, t.keyword) {
			out[t.concept] = delta
		}
	}
	return out
}
