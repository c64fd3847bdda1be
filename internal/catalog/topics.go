package catalog

// Default returns the built-in molecular genetics catalog.
func Default() *Catalog {
	c, err := New(defaultTopics...)
	if err != nil {
		panic("catalog: invalid built-in topics: " + err.Error())
	}
	return c
}

var defaultTopics = []Topic{
	{
		ID:    "dna_structure",
		Title: "DNA Structure",
		Content: "DNA is a double helix made of two antiparallel strands of nucleotides. " +
			"Each nucleotide contains a deoxyribose sugar, a phosphate group and one of four bases: adenine, thymine, guanine or cytosine. " +
			"Adenine pairs with thymine through two hydrogen bonds, while guanine pairs with cytosine through three. " +
			"The sugar-phosphate backbone faces outward and the paired bases stack inside the helix.",
		Keywords:      []string{"double helix", "nucleotide", "base pair", "deoxyribose", "antiparallel"},
		Difficulty:    Beginner,
		RelatedTopics: []string{"dna_replication", "transcription"},
		Examples:      []string{"The sequence 5'-ATGC-3' pairs with 3'-TACG-5' on the opposite strand."},
		Terms:         []string{"dna"},
	},
	{
		ID:    "dna_replication",
		Title: "DNA Replication",
		Content: "DNA replication copies the genome before a cell divides. " +
			"Helicase unwinds the double helix and DNA polymerase builds new strands in the 5' to 3' direction. " +
			"The leading strand is made continuously while the lagging strand is made as Okazaki fragments. " +
			"Replication is semi-conservative, so each new molecule keeps one original strand.",
		Keywords:      []string{"replication", "helicase", "polymerase", "okazaki", "semi-conservative", "replication fork"},
		Difficulty:    Intermediate,
		RelatedTopics: []string{"dna_structure", "mutations"},
		Examples:      []string{"Meselson and Stahl used heavy nitrogen to show replication is semi-conservative."},
	},
	{
		ID:    "transcription",
		Title: "Transcription",
		Content: "Transcription copies a gene from DNA into messenger RNA. " +
			"RNA polymerase binds a promoter region and reads the template strand. " +
			"In eukaryotes the primary transcript is capped, spliced and given a poly-A tail. " +
			"The mature mRNA then leaves the nucleus for translation.",
		Keywords:      []string{"mrna", "rna polymerase", "promoter", "splicing", "messenger rna"},
		Difficulty:    Intermediate,
		RelatedTopics: []string{"translation", "gene_regulation"},
		Examples:      []string{"The TATA box is a common promoter element about 25 bases upstream of the start site."},
		Terms:         []string{"rna"},
	},
	{
		ID:    "translation",
		Title: "Translation",
		Content: "Translation builds a protein from the codons of an mRNA. " +
			"Ribosomes read the message three bases at a time, starting at the AUG start codon. " +
			"Transfer RNAs bring the matching amino acids and the ribosome joins them with peptide bonds. " +
			"A stop codon releases the finished polypeptide.",
		Keywords:      []string{"ribosome", "codon", "trna", "amino acid", "protein synthesis"},
		Difficulty:    Intermediate,
		RelatedTopics: []string{"transcription", "mutations"},
		Examples:      []string{"The codon UUU is read as phenylalanine."},
	},
	{
		ID:    "gene_regulation",
		Title: "Gene Regulation",
		Content: "Gene regulation controls when and how much a gene is expressed. " +
			"Transcription factors bind enhancers and silencers to turn transcription up or down. " +
			"Bacteria group related genes into operons such as the lac operon. " +
			"Regulation also acts after transcription through RNA processing, stability and translation control.",
		Keywords:      []string{"gene expression", "operon", "transcription factor", "enhancer", "repressor"},
		Difficulty:    Advanced,
		RelatedTopics: []string{"transcription", "epigenetics"},
		Examples:      []string{"The lac repressor releases its operator when lactose is present."},
	},
	{
		ID:    "mutations",
		Title: "Mutations",
		Content: "A mutation is a permanent change in a DNA sequence. " +
			"Point mutations swap a single base and can be silent, missense or nonsense. " +
			"Insertions and deletions can shift the reading frame of a gene. " +
			"Mutations arise from replication errors or from mutagens such as radiation and certain chemicals.",
		Keywords:      []string{"mutation", "mutagen", "frameshift", "point mutation", "substitution"},
		Difficulty:    Beginner,
		RelatedTopics: []string{"dna_replication", "translation"},
		Examples:      []string{"Sickle cell anemia comes from a single A to T substitution in the beta-globin gene."},
	},
	{
		ID:    "genetic_recombination",
		Title: "Genetic Recombination",
		Content: "Genetic recombination exchanges DNA between chromosomes. " +
			"During meiosis homologous chromosomes pair up and swap segments by crossing over. " +
			"This shuffles alleles and creates new combinations in the gametes. " +
			"Cells also use homologous recombination to repair double-strand breaks.",
		Keywords:      []string{"recombination", "crossing over", "meiosis", "homologous", "chiasma"},
		Difficulty:    Advanced,
		RelatedTopics: []string{"mendelian_inheritance", "mutations"},
		Examples:      []string{"Genes far apart on a chromosome recombine more often than genes close together."},
	},
	{
		ID:    "mendelian_inheritance",
		Title: "Mendelian Inheritance",
		Content: "Mendelian inheritance describes how traits pass from parents to offspring. " +
			"Each parent contributes one allele for every gene. " +
			"A dominant allele masks a recessive one, so a monohybrid cross gives a 3:1 ratio of phenotypes. " +
			"Genes on different chromosomes assort independently.",
		Keywords:      []string{"allele", "dominant", "recessive", "punnett", "genotype", "phenotype", "heredity"},
		Difficulty:    Beginner,
		RelatedTopics: []string{"genetic_recombination", "mutations"},
		Examples:      []string{"Crossing two Aa pea plants gives AA, Aa and aa offspring in a 1:2:1 ratio."},
		Terms:         []string{"gene", "genes", "trait", "traits"},
	},
	{
		ID:    "gene_editing",
		Title: "Gene Editing",
		Content: "Gene editing changes DNA at a chosen location. " +
			"CRISPR-Cas9 uses a guide RNA to lead the Cas9 nuclease to a matching sequence. " +
			"Cas9 cuts both strands and the cell repairs the break. " +
			"Repair by end joining tends to disrupt the gene, while a supplied template allows precise edits.",
		Keywords:      []string{"crispr", "cas9", "guide rna", "genome editing"},
		Difficulty:    Advanced,
		RelatedTopics: []string{"mutations", "genetic_recombination"},
		Examples:      []string{"Base editors change a single letter without cutting both strands."},
	},
	{
		ID:    "epigenetics",
		Title: "Epigenetics",
		Content: "Epigenetics covers heritable changes in gene activity that do not alter the DNA sequence. " +
			"DNA methylation usually silences genes when it marks promoter regions. " +
			"Histone modifications loosen or tighten chromatin to change access to genes. " +
			"Some epigenetic marks persist through cell division.",
		Keywords:      []string{"epigenetic", "methylation", "histone", "chromatin", "imprinting"},
		Difficulty:    Advanced,
		RelatedTopics: []string{"gene_regulation"},
		Examples:      []string{"X-chromosome inactivation in female mammals is maintained epigenetically."},
	},
}
