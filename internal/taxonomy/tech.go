package taxonomy

import "strings"

// TechTerms associates a domain key with the terms that signal it. A path
// segment whose name contains the key earns one exact match per term found
// in the concept text.
var TechTerms = map[string][]string{
	"aws":              {"aws", "amazon", "ec2", "s3", "lambda", "cloudformation", "dynamodb", "iam"},
	"react":            {"react", "jsx", "component", "hooks", "usestate", "useeffect", "props"},
	"node":             {"node", "nodejs", "express", "npm", "javascript"},
	"python":           {"python", "django", "flask", "pandas", "numpy", "pip"},
	"database":         {"sql", "database", "query", "index", "postgres", "mysql", "mongodb", "schema"},
	"frontend":         {"frontend", "css", "html", "browser", "dom", "ui"},
	"backend":          {"backend", "server", "api", "endpoint", "microservice"},
	"cloud":            {"cloud", "aws", "azure", "gcp", "kubernetes", "docker", "serverless"},
	"machine learning": {"machine learning", "model", "training", "neural", "dataset", "prediction"},
	"nlp":              {"nlp", "natural language", "text", "token", "language model", "sentiment"},
	"data science":     {"data science", "statistics", "analysis", "visualization", "pandas", "regression"},
}

// ExactMatches counts technology signals for path in text. Every segment
// contributes one match when its own name occurs in the text, plus one per
// associated term of each domain key the segment name contains.
func ExactMatches(path Path, text string) int {
	lower := strings.ToLower(text)
	matches := 0
	for _, segment := range path {
		name := strings.ToLower(strings.TrimSpace(segment))
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) {
			matches++
		}
		for key, terms := range TechTerms {
			if !strings.Contains(name, key) {
				continue
			}
			for _, term := range terms {
				if strings.Contains(lower, term) {
					matches++
				}
			}
		}
	}
	return matches
}
