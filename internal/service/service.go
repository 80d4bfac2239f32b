// Package service holds the application state and routes each question to
// the flow that can answer it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"leaseqa/internal/corpus"
	"leaseqa/internal/privacy"
	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/pipeline"
	"leaseqa/internal/rag/tokens"
	"leaseqa/pkg/logger"
)

// ErrNotReady is returned by Ask while the index has not finished building.
var ErrNotReady = errors.New("system not initialized")

// QuestionKind is the flow a question is routed to.
type QuestionKind int

const (
	KindSingleDoc QuestionKind = iota
	KindListing
	KindSensitive
	KindComparison
)

var listingKeywords = []string{
	"documents", "files", "leases", "contracts", "available", "access",
	"what do you have", "what files", "which documents", "list documents",
	"show me documents", "what leases", "what contracts",
}

var comparisonKeywords = []string{
	"compare",
	"difference",
	"differences",
	"across documents",
	"between documents",
	"all documents",
	"each document",
	"contrast",
}

// AskResult is the answer to one question, whichever flow produced it.
type AskResult struct {
	Answer           string              `json:"answer"`
	Tokens           pipeline.TokenUsage `json:"tokens"`
	DocumentListing  bool                `json:"document_listing,omitempty"`
	SensitiveBlocked bool                `json:"sensitive_data_blocked,omitempty"`
}

// Service wires the pipelines together and tracks initialization state.
type Service struct {
	scanner     *corpus.Scanner
	vectorStore interfaces.VectorStore
	protector   *privacy.Protector
	counter     *tokens.Counter
	indexing    *pipeline.IndexingPipeline
	qa          *pipeline.QAPipeline
	comparison  *pipeline.ComparisonPipeline
	log         *logger.Logger

	mu     sync.RWMutex
	status string
	ready  bool
}

func New(
	scanner *corpus.Scanner,
	vectorStore interfaces.VectorStore,
	protector *privacy.Protector,
	counter *tokens.Counter,
	indexing *pipeline.IndexingPipeline,
	qa *pipeline.QAPipeline,
	comparison *pipeline.ComparisonPipeline,
	log *logger.Logger,
) *Service {
	return &Service{
		scanner:     scanner,
		vectorStore: vectorStore,
		protector:   protector,
		counter:     counter,
		indexing:    indexing,
		qa:          qa,
		comparison:  comparison,
		log:         log,
		status:      "Not initialized",
	}
}

// Status returns the human-readable initialization status and readiness.
func (s *Service) Status() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.ready
}

func (s *Service) setStatus(status string, ready bool) {
	s.mu.Lock()
	s.status = status
	s.ready = ready
	s.mu.Unlock()
}

// Initialize runs one blocking ingestion pass and flips the service to ready
// on success. It can be called again to pick up new or changed documents.
func (s *Service) Initialize(ctx context.Context) error {
	s.setStatus("Initializing...", false)
	s.log.Info("Initializing document index")

	report, err := s.indexing.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoDocuments) {
			s.setStatus("Error: No documents found", false)
		} else {
			s.setStatus(fmt.Sprintf("Error: %v", err), false)
		}
		return err
	}

	docCount := report.Ingested + report.Skipped
	s.setStatus(fmt.Sprintf("Ready - %d documents indexed", docCount), true)
	s.log.WithPayload(map[string]interface{}{"documents": docCount}).Info("Document index ready")
	return nil
}

// Classify decides which flow answers the question. Listing wins over
// everything else, then the sensitive-data gate, then comparison; the
// compareFlag forces comparison for questions whose wording does not trigger
// the keyword match.
func (s *Service) Classify(question string, compareFlag bool) QuestionKind {
	lower := strings.ToLower(question)
	for _, keyword := range listingKeywords {
		if strings.Contains(lower, keyword) {
			return KindListing
		}
	}
	if s.protector.IsQuestionAboutSensitiveData(question) {
		return KindSensitive
	}
	if compareFlag {
		return KindComparison
	}
	for _, keyword := range comparisonKeywords {
		if strings.Contains(lower, keyword) {
			return KindComparison
		}
	}
	return KindSingleDoc
}

// Ask answers one question, routing it through Classify. It returns
// ErrNotReady until Initialize has succeeded.
func (s *Service) Ask(ctx context.Context, question string, compareFlag bool) (*AskResult, error) {
	if _, ready := s.Status(); !ready {
		return nil, ErrNotReady
	}

	switch s.Classify(question, compareFlag) {
	case KindListing:
		return s.answerListing(ctx, question)
	case KindSensitive:
		return s.answerSensitive(question)
	case KindComparison:
		paths, err := s.scanner.ListDocuments()
		if err != nil {
			return nil, err
		}
		s.log.Info(fmt.Sprintf("Comparison mode activated for question: %s", question))
		answer, err := s.comparison.Run(ctx, question, paths)
		if err != nil {
			return nil, err
		}
		return &AskResult{Answer: answer.Text, Tokens: answer.Tokens}, nil
	default:
		answer, err := s.qa.Run(ctx, question)
		if err != nil {
			return nil, err
		}
		return &AskResult{Answer: answer.Text, Tokens: answer.Tokens}, nil
	}
}

// questionOnlyUsage is the token shape for answers produced without a model
// call.
func (s *Service) questionOnlyUsage(question string) pipeline.TokenUsage {
	questionTokens := s.counter.Count(question)
	return pipeline.TokenUsage{
		QuestionTokens:   questionTokens,
		TotalInputTokens: questionTokens,
		TotalTokens:      questionTokens,
	}
}

func (s *Service) answerListing(ctx context.Context, question string) (*AskResult, error) {
	// A document counts as indexed once the store holds chunks; an ingestion
	// pass that stored nothing leaves the listing marked as processing.
	count, err := s.vectorStore.Count(ctx)
	if err != nil {
		return nil, err
	}
	infos, err := s.scanner.DocumentInfos(count > 0)
	if err != nil {
		return nil, err
	}
	return &AskResult{
		Answer:          ListingHTML(infos),
		Tokens:          s.questionOnlyUsage(question),
		DocumentListing: true,
	}, nil
}

func (s *Service) answerSensitive(question string) (*AskResult, error) {
	detected := s.protector.DetectedCategories(question)
	return &AskResult{
		Answer:           s.protector.Refusal(detected),
		Tokens:           s.questionOnlyUsage(question),
		SensitiveBlocked: true,
	}, nil
}

// ListingHTML renders the document inventory as an HTML fragment for chat
// clients.
func ListingHTML(infos []corpus.DocumentInfo) string {
	if len(infos) == 0 {
		return "<p>I don't currently have access to any documents. " +
			"Please ensure PDF files are placed in the '<strong>Lease Contracts</strong>' folder.</p>"
	}

	var sb strings.Builder
	sb.WriteString("<div>")
	sb.WriteString("<p><strong>I have access to the following documents:</strong></p>")
	sb.WriteString("<ul>")
	for i, info := range infos {
		statusIcon, statusText := "⏳", "Processing"
		if info.Indexed {
			statusIcon, statusText = "✅", "Indexed"
		}
		fmt.Fprintf(&sb, "<li><strong>%d. %s</strong> %s — Size: %.2f MB • Status: %s</li>",
			i+1, info.Filename, statusIcon, info.SizeMB, statusText)
	}
	sb.WriteString("</ul>")
	sb.WriteString("<p>You can ask questions such as:</p>")
	sb.WriteString("<ul>")
	sb.WriteString("<li><strong>What is the lease term in [filename]?</strong></li>")
	sb.WriteString("<li><strong>What is the monthly rent in [filename]?</strong></li>")
	sb.WriteString("<li><strong>What are the tenant responsibilities in [filename]?</strong></li>")
	sb.WriteString("</ul>")
	sb.WriteString("<p><em>Note:</em> Documents marked with ⏳ are still being processed and may not be fully searchable yet.</p>")
	sb.WriteString("</div>")
	return sb.String()
}
