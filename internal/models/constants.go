package models

const (
	// DocumentPrefix is the blob key prefix every uploaded document lives under.
	DocumentPrefix = "documents/"

	DefaultChunkSize    = 500 // tokens
	DefaultChunkOverlap = 50  // tokens
	DefaultSnippetChars = 500
	DefaultTopK         = 5
	MinTopK             = 1
	MaxTopK             = 20
	UpsertBatchSize     = 100

	APIVersion = "1.0.0"
)

var (
	SystemPrompt = "You are a helpful assistant that answers questions about banking documents. Always cite your sources when providing information."

	AnswerPromptTemplate = `You are a helpful assistant that answers questions based on the provided banking documents.

Context from documents:
%s

Question: %s

Please provide a comprehensive answer based on the context above. If the context doesn't contain enough information to answer the question, please say so.

Answer:`

	NoContextAnswer = "I couldn't find any relevant information in the documents to answer your question."
)
