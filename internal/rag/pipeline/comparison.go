package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/schema"
	"leaseqa/internal/rag/tokens"
	"leaseqa/pkg/logger"
)

const summarizePromptTemplate = `You are summarizing one lease contract to help answer a comparison question.
Question: %s

Excerpts from "%s":
%s

Summarize only what these excerpts say that is relevant to the question. If they say nothing relevant, reply exactly: "` + NoDetailsFound + `"
Do not reveal Social Security numbers, credit card numbers, bank account numbers, phone numbers, email addresses, or street addresses.`

const synthesisPromptTemplate = `You are comparing lease contracts to answer a question.
Question: %s

Per-document findings:
%s

Compare the documents on the subject the question asks about, and only that subject. Attribute each point to its document by name. If the findings do not clearly answer the question, reply exactly: "` + NotSpecifiedAnswer + `"`

// ComparisonPipeline answers a question spanning several documents: it
// retrieves per document, summarizes each in isolation, then synthesizes a
// comparison from the summaries.
type ComparisonPipeline struct {
	retriever  *RetrievalPipeline
	llm        interfaces.LLM
	counter    *tokens.Counter
	compareTop int
	log        *logger.Logger
}

func NewComparisonPipeline(retriever *RetrievalPipeline, llm interfaces.LLM, counter *tokens.Counter, compareTop int, log *logger.Logger) *ComparisonPipeline {
	if compareTop <= 0 {
		compareTop = 15
	}
	return &ComparisonPipeline{
		retriever:  retriever,
		llm:        llm,
		counter:    counter,
		compareTop: compareTop,
		log:        log,
	}
}

type documentFinding struct {
	name     string
	summary  string
	hasModel bool // summary came from the model, not a degradation
	pages    []int
}

// Run compares the documents at the given paths against the question. A
// single failing document degrades to a fixed no-details finding instead of
// failing the whole comparison.
func (p *ComparisonPipeline) Run(ctx context.Context, question string, paths []string) (*Answer, error) {
	questionTokens := p.counter.Count(question)
	usage := TokenUsage{
		QuestionTokens:   questionTokens,
		TotalInputTokens: questionTokens,
	}

	if len(paths) == 0 {
		usage.TotalTokens = questionTokens
		return &Answer{Text: CompareNoDocuments, Tokens: usage}, nil
	}

	queryEmbedding, err := p.retriever.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	findings := make([]documentFinding, 0, len(paths))
	for _, path := range paths {
		finding := p.summarizeDocument(ctx, question, queryEmbedding, path, &usage)
		findings = append(findings, finding)
	}

	usable := 0
	for _, f := range findings {
		if f.hasModel {
			usable++
		}
	}
	if usable == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		return &Answer{Text: CompareInsufficient, Tokens: usage}, nil
	}

	var sb strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&sb, "%s:\n%s\n\n", f.name, f.summary)
	}
	synthesisPrompt := fmt.Sprintf(synthesisPromptTemplate, question, strings.TrimSpace(sb.String()))

	generation, err := p.llm.Generate(ctx, synthesisPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize comparison: %w", err)
	}
	usage.PromptTokens += generation.PromptTokens
	usage.CompletionTokens += generation.CompletionTokens
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	answer := strings.TrimSpace(generation.Text)
	if sources := formatSources(findings); sources != "" {
		answer = answer + "\n\n" + sources
	}
	return &Answer{Text: answer, Tokens: usage}, nil
}

// summarizeDocument retrieves and summarizes a single document. Failures are
// logged and degraded, never propagated.
func (p *ComparisonPipeline) summarizeDocument(ctx context.Context, question string, queryEmbedding []float32, path string, usage *TokenUsage) documentFinding {
	name := filepath.Base(path)
	finding := documentFinding{name: name, summary: NoDetailsFound}

	docs, err := p.retriever.RunFiltered(ctx, queryEmbedding, p.compareTop, map[string]string{schema.MetadataKeySource: path})
	if err != nil {
		p.log.Warn(fmt.Sprintf("Retrieval failed for %s: %v", name, err))
		return finding
	}
	if len(docs) == 0 {
		docs, err = p.retriever.RunFiltered(ctx, queryEmbedding, p.compareTop, map[string]string{schema.MetadataKeyFilePath: path})
		if err != nil {
			p.log.Warn(fmt.Sprintf("Retrieval failed for %s: %v", name, err))
			return finding
		}
	}
	if len(docs) == 0 {
		p.log.Info(fmt.Sprintf("No chunks found for %s", name))
		return finding
	}

	snippets, pages := formatSnippets(docs)
	finding.pages = pages

	prompt := fmt.Sprintf(summarizePromptTemplate, question, name, snippets)

	generation, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		p.log.Warn(fmt.Sprintf("Summarization failed for %s: %v", name, err))
		return finding
	}
	usage.PromptTokens += generation.PromptTokens
	usage.CompletionTokens += generation.CompletionTokens

	summary := strings.TrimSpace(generation.Text)
	if summary == "" {
		return finding
	}
	finding.summary = summary
	finding.hasModel = summary != NoDetailsFound
	return finding
}

// formatSnippets renders chunks with one-based page headers and collects the
// distinct page numbers for the citation block.
func formatSnippets(docs []*schema.Document) (string, []int) {
	var sb strings.Builder
	seen := make(map[int]bool)
	var pages []int
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if page, ok := pageNumber(doc); ok {
			fmt.Fprintf(&sb, "[Page %d]\n", page)
			if !seen[page] {
				seen[page] = true
				pages = append(pages, page)
			}
		}
		sb.WriteString(doc.Text)
	}
	sort.Ints(pages)
	return sb.String(), pages
}

// pageNumber converts the stored zero-based page label to a one-based page
// number. Unparseable labels are skipped.
func pageNumber(doc *schema.Document) (int, bool) {
	raw, ok := doc.Metadata[schema.MetadataKeyPageLabel]
	if !ok {
		return 0, false
	}
	label, ok := raw.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(label))
	if err != nil {
		return 0, false
	}
	return n + 1, true
}

func formatSources(findings []documentFinding) string {
	var lines []string
	for _, f := range findings {
		for _, page := range f.pages {
			lines = append(lines, fmt.Sprintf("- [%s Page %d]", f.name, page))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	sort.Strings(lines)
	return "Sources:\n" + strings.Join(lines, "\n")
}
