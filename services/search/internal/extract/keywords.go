package extract

import "strings"

// Vocabulary is the fixed technology list, in reporting order. Matching is a
// case-sensitive substring test, so "Java" also matches inside "JavaScript".
var Vocabulary = []string{
	"JavaScript", "TypeScript", "Python", "Java", "Golang", "Rust", "Ruby",
	"PHP", "C++", "C#", "Kotlin", "Swift", "Scala",
	"React", "Angular", "Vue", "Node.js", "Next.js", "Django", "Flask",
	"Spring", "Rails", ".NET", "GraphQL", "REST",
	"SQL", "PostgreSQL", "MySQL", "MongoDB", "Redis", "Elasticsearch",
	"Kafka", "RabbitMQ",
	"Docker", "Kubernetes", "Terraform", "Ansible", "AWS", "Azure", "GCP",
	"Linux", "Git", "Jenkins", "CI/CD",
	"Spark", "Hadoop", "TensorFlow", "PyTorch", "Pandas",
	"Figma", "Tableau", "Salesforce",
}

// ScanKeywords returns the vocabulary entries present in text, in vocabulary
// order. The result is never nil.
func ScanKeywords(text string) []string {
	found := make([]string, 0, 8)
	for _, kw := range Vocabulary {
		if strings.Contains(text, kw) {
			found = append(found, kw)
		}
	}
	return found
}
