package models

const (
	// NotInitializedMessage is shown when a question arrives before any document was processed.
	NotInitializedMessage = "Conversation chain is not initialized. Please upload PDFs and process them."

	HumanPrefix = "Human"
	AIPrefix    = "Assistant"
)

var (
	// CondenseQuestionTemplate rewrites a follow-up into a question that stands on its own for retrieval.
	CondenseQuestionTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`

	SystemPrompt = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.`

	AnswerTemplate = `<context>
{{.context}}
</context>
{{if .chat_history}}
Conversation so far:
{{.chat_history}}
{{end}}
Question: {{.question}}
Helpful Answer:`

	ContextSeparator = "\n---\n"
)
