package classifier

import "strings"

// DefaultUmbrella is the label forced by the domain override.
const DefaultUmbrella = "Machine Learning"

// Short, high-signal phrases that keyword scoring under-weights.
var (
	nlpTriggers = []string{
		"natural language processing",
		"nlp",
		"large language model",
		"language model",
		"llm",
		"tokenization",
		"sentiment analysis",
		"named entity recognition",
		"text classification",
		"word embedding",
	}
	mlTriggers = []string{
		"machine learning",
		"deep learning",
		"neural network",
		"supervised learning",
		"unsupervised learning",
		"gradient descent",
		"model training",
		"overfitting",
	}
)

type domainHit int

const (
	domainNone domainHit = iota
	domainML
	domainNLP
)

func detectDomain(text string) domainHit {
	lower := strings.ToLower(text)
	for _, t := range nlpTriggers {
		if strings.Contains(lower, t) {
			return domainNLP
		}
	}
	for _, t := range mlTriggers {
		if strings.Contains(lower, t) {
			return domainML
		}
	}
	return domainNone
}

func (d domainHit) String() string {
	switch d {
	case domainNLP:
		return "nlp"
	case domainML:
		return "ml"
	default:
		return "none"
	}
}
