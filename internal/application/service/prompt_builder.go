package service

import (
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/outbound"
	"strings"
)

// Default token limits.
const (
	DefaultPromptMaxTokens      = 350
	DefaultPlaceholderMaxTokens = 10
)

// PlaceholderPromptText is the body of every padding record: the skip sentinel
// followed by the prompt layout with every field empty.
const PlaceholderPromptText = valueobject.SkipSentinel +
	"\n\nTitle:\n\nArticleId:\n\nAbstract:\n\nIntroduction:\n\nExperiment:\n\nResults:\n\nAuthors:\n\nArticle URL:\n"

// PromptBuilderConfig holds prompt settings.
type PromptBuilderConfig struct {
	Instruction          string
	MaxTokens            int
	PlaceholderMaxTokens int
	AnthropicVersion     string
}

// PromptBuilder renders work items into model inputs.
type PromptBuilder struct {
	config PromptBuilderConfig
}

// NewPromptBuilder creates a prompt builder.
func NewPromptBuilder(config PromptBuilderConfig) *PromptBuilder {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultPromptMaxTokens
	}
	if config.PlaceholderMaxTokens <= 0 {
		config.PlaceholderMaxTokens = DefaultPlaceholderMaxTokens
	}
	return &PromptBuilder{config: config}
}

// Build renders the prompt for an item and its extracted sections.
func (b *PromptBuilder) Build(item *entity.WorkItem, sections outbound.Sections) entity.ModelInput {
	var sb strings.Builder
	sb.WriteString(b.config.Instruction)
	writeField(&sb, "Title", item.Title())
	writeField(&sb, "ArticleId", item.ItemID())
	writeField(&sb, "Abstract", item.Abstract())
	writeField(&sb, "Introduction", sections.Introduction)
	writeField(&sb, "Experiment", sections.Experiment)
	writeField(&sb, "Results", sections.Results)
	writeField(&sb, "Authors", strings.Join(item.Authors(), ", "))
	writeField(&sb, "Article URL", item.URL())

	input := entity.NewTextModelInput(sb.String(), b.config.MaxTokens)
	input.AnthropicVersion = b.config.AnthropicVersion
	return input
}

// Placeholder renders the padding input.
func (b *PromptBuilder) Placeholder() entity.ModelInput {
	input := entity.NewTextModelInput(PlaceholderPromptText, b.config.PlaceholderMaxTokens)
	input.AnthropicVersion = b.config.AnthropicVersion
	return input
}

func writeField(sb *strings.Builder, label, value string) {
	sb.WriteString("\n\n")
	sb.WriteString(label)
	sb.WriteString(":\n")
	sb.WriteString(value)
}
