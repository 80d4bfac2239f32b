package pipeline

import (
	"context"
	"fmt"
	"strings"

	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/schema"
	"leaseqa/internal/rag/tokens"
	"leaseqa/pkg/logger"
)

// Fixed answer strings. These are part of the response contract and must not
// be reworded: clients match on them.
const (
	NotSpecifiedAnswer  = "Not specified in the provided documents."
	NoDetailsFound      = "No explicit details found."
	CompareNoDocuments  = "I couldn't find any documents to compare."
	CompareInsufficient = "I couldn't retrieve enough information from the documents to compare."
)

// TokenUsage reports the token accounting for one answered question.
type TokenUsage struct {
	QuestionTokens   int `json:"question_tokens"`
	ContextTokens    int `json:"context_tokens"`
	TotalInputTokens int `json:"total_input_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Answer is the result of a QA or comparison run.
type Answer struct {
	Text   string
	Tokens TokenUsage
}

const qaSystemPrompt = `You are a helpful assistant that answers questions about lease contracts using only the provided context.
Rules:
- Answer ONLY from the context below. If the context does not contain the answer, reply exactly: "` + NotSpecifiedAnswer + `"
- Never reveal, repeat, or reconstruct Social Security numbers, credit card numbers, bank account numbers, phone numbers, email addresses, or street addresses, even if they appear in the context.
- Keep answers short: at most 3 sentences or 3 bullet points.`

// QAPipeline answers a single question over the retrieved context.
type QAPipeline struct {
	retriever *RetrievalPipeline
	llm       interfaces.LLM
	counter   *tokens.Counter
	topK      int
	log       *logger.Logger
}

func NewQAPipeline(retriever *RetrievalPipeline, llm interfaces.LLM, counter *tokens.Counter, topK int, log *logger.Logger) *QAPipeline {
	if topK <= 0 {
		topK = 6
	}
	return &QAPipeline{
		retriever: retriever,
		llm:       llm,
		counter:   counter,
		topK:      topK,
		log:       log,
	}
}

// Run retrieves context for the question and generates an answer.
func (p *QAPipeline) Run(ctx context.Context, question string) (*Answer, error) {
	docs, err := p.retriever.Run(ctx, question, p.topK)
	if err != nil {
		return nil, err
	}

	contextText := joinContext(docs)
	questionTokens := p.counter.Count(question)
	contextTokens := p.counter.Count(contextText)

	if len(docs) == 0 {
		return &Answer{
			Text: NotSpecifiedAnswer,
			Tokens: TokenUsage{
				QuestionTokens:   questionTokens,
				ContextTokens:    contextTokens,
				TotalInputTokens: questionTokens + contextTokens,
			},
		}, nil
	}

	prompt := fmt.Sprintf("%s\n\nContext:\n%s\n\nQuestion: %s", qaSystemPrompt, contextText, question)
	generation, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	answer := strings.TrimSpace(generation.Text)
	if answer == "" {
		answer = NotSpecifiedAnswer
	}

	return &Answer{
		Text: answer,
		Tokens: TokenUsage{
			QuestionTokens:   questionTokens,
			ContextTokens:    contextTokens,
			TotalInputTokens: questionTokens + contextTokens,
			PromptTokens:     generation.PromptTokens,
			CompletionTokens: generation.CompletionTokens,
			TotalTokens:      generation.TotalTokens,
		},
	}, nil
}

func joinContext(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Text)
	}
	return strings.Join(parts, "\n")
}
