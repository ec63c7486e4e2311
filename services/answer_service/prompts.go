package answer_service

import "strings"

const PolicyPromptTemplate = `You are an expert on RBI banking regulations. Answer the question based only on the following context:
{context}

Question: {question}

Provide a concise answer with relevant RBI guidelines. 
DO NOT mention any document names, circular numbers, or paragraph references.
Only provide the regulatory information in clear, simple language.
If you don't know, say "I couldn't find this information in the documents".`

const DataPromptTemplate = `You are an expert on banking data and statistics. Answer the question based only on the following context:
{context}

Question: {question}

Provide a concise answer with relevant data points.
DO NOT mention any document names, report titles, or page references.
Present the data in clear, simple language without citations.
If you don't know, say "I couldn't find this information in the data documents".`

// BuildPrompt fills the {context} and {question} slots. Substituted text is
// not scanned again, so braces inside documents are left alone.
func BuildPrompt(template, context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(template)
}

// Replacement is one literal substitution applied to a model answer.
type Replacement struct {
	Old string
	New string
}

// Sanitize applies replacements in order. Each step sees the output of the
// previous one.
func Sanitize(text string, replacements []Replacement) string {
	for _, r := range replacements {
		text = strings.ReplaceAll(text, r.Old, r.New)
	}
	return text
}
