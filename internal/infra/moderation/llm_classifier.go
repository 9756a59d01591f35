// Package moderation scores listing text with an LLM before publication.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-classifieds-bot/internal/config"
	"telegram-classifieds-bot/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ContentClassifier = (*LLMClassifier)(nil)

const classifierPrompt = `Ты модератор доски объявлений. Оцени текст объявления.
Ответь строго одним JSON-объектом вида
{"is_safe": true|false, "category": "<категория нарушения или ok>", "confidence": 0.0-1.0, "reason": "<короткое объяснение>"}.
Запрещено: оружие, наркотики, контрафакт, мошенничество, услуги интимного характера, персональные данные третьих лиц.`

// LLMClassifier calls a Chat Completions endpoint and parses a JSON verdict.
// When failOpen is set, transport and parse errors yield a safe verdict so
// moderation outages never block publication.
type LLMClassifier struct {
	apiKey   string
	base     string
	model    string
	minScore float64
	failOpen bool
	client   *http.Client
	log      *zerolog.Logger
}

func NewLLMClassifier(cfg config.ModerationConfig, logger *zerolog.Logger) (*LLMClassifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("moderation api key empty")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	l := logger.With().Str("component", "LLMClassifier").Logger()
	return &LLMClassifier{
		apiKey:   cfg.APIKey,
		base:     strings.TrimRight(base, "/"),
		model:    model,
		minScore: cfg.MinScore,
		failOpen: cfg.FailOpen,
		log:      &l,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *LLMClassifier) Classify(ctx context.Context, text, categoryContext string) (adapter.Verdict, error) {
	userContent := text
	if categoryContext != "" {
		userContent = fmt.Sprintf("Категория: %s\n\n%s", categoryContext, text)
	}
	verdict, err := c.call(ctx, userContent)
	if err != nil {
		if c.failOpen {
			c.log.Warn().Err(err).Msg("classifier unavailable, passing content")
			return adapter.Verdict{IsSafe: true, Category: "unverified", Reason: "classifier unavailable"}, nil
		}
		return adapter.Verdict{}, err
	}
	// A negative verdict below the confidence threshold is treated as safe.
	if !verdict.IsSafe && verdict.Confidence < c.minScore {
		verdict.IsSafe = true
	}
	return verdict, nil
}

func (c *LLMClassifier) call(ctx context.Context, userContent string) (adapter.Verdict, error) {
	reqBody := struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifierPrompt},
			{Role: "user", Content: userContent},
		},
	}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return adapter.Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return adapter.Verdict{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return adapter.Verdict{}, fmt.Errorf("moderation http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return adapter.Verdict{}, err
	}
	for _, choice := range payload.Choices {
		if choice.Message.Content != "" {
			return parseVerdict(choice.Message.Content)
		}
	}
	return adapter.Verdict{}, errors.New("no choice content")
}

// parseVerdict extracts the JSON object from the model answer, tolerating
// surrounding prose and markdown fences.
func parseVerdict(content string) (adapter.Verdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return adapter.Verdict{}, fmt.Errorf("no JSON object in verdict: %q", content)
	}
	var raw struct {
		IsSafe     bool    `json:"is_safe"`
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return adapter.Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	return adapter.Verdict{
		IsSafe:     raw.IsSafe,
		Category:   raw.Category,
		Confidence: raw.Confidence,
		Reason:     raw.Reason,
	}, nil
}
