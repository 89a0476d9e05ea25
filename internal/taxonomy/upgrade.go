package taxonomy

import "strings"

// UpgradeRule promotes a coarse category to Target when any trigger occurs
// in the concept text.
type UpgradeRule struct {
	Triggers []string
	Target   Path
}

// UpgradeRules maps a lowercased flat category name to its ordered rules.
var UpgradeRules = map[string][]UpgradeRule{
	"cloud": {
		{Triggers: []string{"aws", "amazon web services", "ec2", "s3 bucket", "lambda", "dynamodb"}, Target: Path{"Cloud", "AWS"}},
		{Triggers: []string{"azure", "cosmos db"}, Target: Path{"Cloud", "Azure"}},
		{Triggers: []string{"gcp", "google cloud", "bigquery", "cloud run"}, Target: Path{"Cloud", "GCP"}},
	},
	"machine learning": {
		{Triggers: []string{"nlp", "natural language", "language model", "transformer", "tokeniz"}, Target: Path{"Machine Learning", "NLP"}},
		{Triggers: []string{"computer vision", "image classification", "object detection", "convolutional"}, Target: Path{"Machine Learning", "Computer Vision"}},
		{Triggers: []string{"reinforcement learning", "reward function", "policy gradient"}, Target: Path{"Machine Learning", "Reinforcement Learning"}},
	},
	"frontend": {
		{Triggers: []string{"react", "jsx", "usestate", "useeffect"}, Target: Path{"Frontend", "React"}},
		{Triggers: []string{"vue", "vuex", "pinia"}, Target: Path{"Frontend", "Vue"}},
		{Triggers: []string{"angular", "rxjs"}, Target: Path{"Frontend", "Angular"}},
	},
	"backend": {
		{Triggers: []string{"node", "express", "npm"}, Target: Path{"Backend", "Node.js"}},
		{Triggers: []string{"python", "django", "flask", "fastapi"}, Target: Path{"Backend", "Python"}},
		{Triggers: []string{"golang", "goroutine"}, Target: Path{"Backend", "Go"}},
	},
	"database": {
		{Triggers: []string{"postgres", "postgresql"}, Target: Path{"Database", "PostgreSQL"}},
		{Triggers: []string{"mongodb", "mongo"}, Target: Path{"Database", "MongoDB"}},
		{Triggers: []string{"redis"}, Target: Path{"Database", "Redis"}},
	},
	"programming": {
		{Triggers: []string{"algorithm", "big o", "complexity"}, Target: Path{"Programming", "Algorithms"}},
		{Triggers: []string{"design pattern", "singleton", "factory pattern"}, Target: Path{"Programming", "Design Patterns"}},
	},
}

// Upgrade returns the target of the first rule for category whose triggers
// occur in text. The target is only returned when known contains it; an
// upgrade never creates categories.
func Upgrade(category, text string, known *Index) (Path, bool) {
	rules, ok := UpgradeRules[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return nil, false
	}

	lower := strings.ToLower(text)
	for _, rule := range rules {
		if !containsAny(lower, rule.Triggers) {
			continue
		}
		if known == nil || !known.Has(rule.Target) {
			return nil, false
		}
		return rule.Target, true
	}
	return nil, false
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
