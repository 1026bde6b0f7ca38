// Package llm implements the generative question provider on top of an
// OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/oddlab/oddyssey/internal/model"
	"github.com/oddlab/oddyssey/internal/question"
)

// generatedQuestion is the JSON shape the model is asked to return.
type generatedQuestion struct {
	Prompt  string `json:"prompt"`
	Options []struct {
		Text        string `json:"text"`
		IsOddOneOut bool   `json:"is_odd_one_out"`
	} `json:"options"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api       *openai.Client
	modelName string
	now       func() time.Time
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:       openai.NewClientWithConfig(config),
		modelName: modelName,
		now:       time.Now,
	}
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// Generate asks the model for one odd-one-out question. Implements
// question.Generator; any failure is reported as an error and the
// caller falls back to the curated bank.
func (c *Client) Generate(ctx context.Context, req question.Request) (*model.Question, error) {
	prompt := buildQuestionPrompt(req)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.8,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM question response", "raw", raw)

	q, err := parseGenerated(raw, req, c.now())
	if err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return q, nil
}

// parseGenerated converts the raw model output into a Question.
func parseGenerated(raw string, req question.Request, at time.Time) (*model.Question, error) {
	var gen generatedQuestion
	if err := json.Unmarshal([]byte(raw), &gen); err != nil {
		return nil, err
	}
	if strings.TrimSpace(gen.Prompt) == "" {
		return nil, fmt.Errorf("empty prompt")
	}
	if len(gen.Options) < 2 {
		return nil, fmt.Errorf("need at least 2 options, got %d", len(gen.Options))
	}

	id := uuid.NewString()
	options := make([]model.Option, 0, len(gen.Options))
	oddID := ""
	for i, opt := range gen.Options {
		if strings.TrimSpace(opt.Text) == "" {
			continue
		}
		optID := fmt.Sprintf("%s-option-%d", id, i)
		options = append(options, model.Option{ID: optID, Text: opt.Text, IsOddOneOut: opt.IsOddOneOut})
		if opt.IsOddOneOut && oddID == "" {
			oddID = optID
		}
	}
	if oddID == "" {
		return nil, fmt.Errorf("no option flagged as odd one out")
	}

	return &model.Question{
		ID:          id,
		Seed:        uuid.NewString(),
		Prompt:      gen.Prompt,
		ThemeID:     req.ThemeID,
		Difficulty:  req.Difficulty,
		Options:     options,
		OddOptionID: oddID,
		Source:      model.SourceGenerated,
		GeneratedAt: at,
	}, nil
}

// buildQuestionPrompt builds the system prompt for question generation,
// threading in the session's exclusion sets.
func buildQuestionPrompt(req question.Request) string {
	exclusions := "Ensure all options use distinct language."
	if texts := sortedKeys(req.ExcludedOptionTexts); len(texts) > 0 {
		exclusions = "Avoid reusing these option phrasings: " + strings.Join(texts, "; ")
	}

	previous := "Keep every prompt distinct from earlier questions in this session."
	if ids := sortedKeys(req.ExcludedQuestionIDs); len(ids) > 0 {
		previous = "Avoid repeating prompts that match any of these seeds: " + strings.Join(ids, ", ") + "."
	}

	var sb strings.Builder
	sb.WriteString("You are the Oddyssey quiz master AI generating fast-paced Odd-One-Out trivia.\n")
	sb.WriteString("Game rules: Present exactly four answer options. Exactly one option must be the odd one out (intentionally incorrect or thematically misaligned).\n")
	sb.WriteString("The other three options must closely relate to the prompt and be unique.\n")
	sb.WriteString(fmt.Sprintf("Theme focus: %q (id: %s). The difficulty should feel %s.\n", req.ThemeLabel, req.ThemeID, req.Difficulty))
	sb.WriteString("Keep the prompt concise (<120 characters) and the options under 60 characters each.\n")
	sb.WriteString(exclusions + "\n")
	sb.WriteString(previous + "\n")
	sb.WriteString(`Return JSON only with fields: prompt (string) and options (array of { text, is_odd_one_out }).`)
	sb.WriteString("\n")
	return sb.String()
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
