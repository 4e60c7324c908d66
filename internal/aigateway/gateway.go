// Package aigateway normalizes raw adverts through an OpenAI-compatible
// chat-completions service.
package aigateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
)

const completionsPath = "/v1/chat/completions"

const systemPrompt = `Ты парсер объявлений. Я передаю тебе детали объявления, которые были извлечены со страницы. Аккуратно всё отформатируй и верни JSON по схеме.
title: Отформатированный заголовок объявления. Не с маленькой буквы, должен описывать сам товар (машину, недвижимость и т.п.).
price: Цена объявления числом. Если в <price> цены нет, ищи её в описании. Если автор указал подозрительно маленькую сумму для крупного товара (например 300 за машину), трактуй её как тысячи (300000).
phone: Телефон продавца. Если в <phone> пусто, но номер есть в описании, вытащи его оттуда.
description: Отформатированное описание латиницей. Исключи из него телефон, цену и город - они уже сохранены отдельно. Убери мусор и дубли характеристик.
is_service: true если это реклама услуг, сервисов и прочее рекламное объявление; false если это нормальное объявление о продаже, покупке или обмене.`

// advertSchema is the declared output contract sent with every request.
var advertSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":       map[string]any{"type": "string", "description": "Заголовок"},
		"price":       map[string]any{"type": "string", "description": "Цена"},
		"phone":       map[string]any{"type": "string", "description": "Телефон продавца"},
		"description": map[string]any{"type": "string", "description": "Отформатированное описание"},
		"is_service":  map[string]any{"type": "boolean", "description": "Рекламное объявление об услугах"},
	},
	"required": []string{"title", "price", "phone", "description", "is_service"},
}

// Config points the gateway at a completion service.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Gateway implements advert.Normalizer over HTTP.
type Gateway struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds a Gateway.
func New(cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// advertPayload is the schema the model must answer with.
type advertPayload struct {
	Title       string `json:"title"`
	Price       string `json:"price"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
	IsService   bool   `json:"is_service"`
}

// Normalize sends the raw advert to the model and parses the structured
// reply. A malformed or missing response is reported as ErrRejected; there
// is no retry at this level.
func (g *Gateway) Normalize(ctx context.Context, raw advert.RawAdvert) (*advert.NormalizedAdvert, error) {
	content, err := g.complete(ctx, raw)
	if err != nil {
		return nil, err
	}

	payload, err := parsePayload(content)
	if err != nil {
		g.logger.Warn("model response did not match schema", zap.Error(err))
		return nil, advert.ErrRejected
	}

	if payload.IsService {
		return &advert.NormalizedAdvert{Rejected: true}, nil
	}

	norm := &advert.NormalizedAdvert{
		Title:       payload.Title,
		Description: payload.Description,
		Phone:       payload.Phone,
		Price:       resolvePrice(payload.Price, raw),
	}
	if norm.Title == "" {
		return nil, advert.ErrRejected
	}
	if norm.Phone == "" {
		norm.Phone = raw.Phone
	}
	return norm, nil
}

func (g *Gateway) complete(ctx context.Context, raw advert.RawAdvert) (string, error) {
	reqBody := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: formatDetails(raw)},
		},
		Temperature: 0.2,
		ResponseFormat: map[string]any{
			"type":   "json_object",
			"schema": advertSchema,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	url := strings.TrimSuffix(g.cfg.BaseURL, "/") + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion service status %d: %s", resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// formatDetails renders the raw advert as the tagged block the prompt
// contract expects.
func formatDetails(raw advert.RawAdvert) string {
	var props strings.Builder
	for _, p := range raw.Properties {
		props.WriteString(p.Name)
		props.WriteString(":")
		props.WriteString(p.Text)
		props.WriteString(";")
	}
	price := ""
	if raw.HasPrice {
		price = fmt.Sprintf("%d", raw.Price)
	}
	return fmt.Sprintf(
		"<title>%s</title>\n<description>%s</description>\n<price>%s</price>\n<phone>%s</phone>\n<details>%s</details>",
		raw.Title, raw.Description, price, raw.Phone, props.String(),
	)
}

// parsePayload tolerates both a bare JSON body and one wrapped in a fenced
// code block.
func parsePayload(content string) (advertPayload, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload advertPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return advertPayload{}, fmt.Errorf("unmarshal advert payload: %w", err)
	}
	return payload, nil
}
