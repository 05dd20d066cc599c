package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/freedom_case_2/fire/internal/analytics"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Translator turns an analyst question into an aggregation spec. The spec is
// not trusted; the query engine validates it.
type Translator interface {
	Translate(ctx context.Context, question string, history []ChatMessage) (analytics.Spec, error)
}

type OpenAITranslator struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int

	once   sync.Once
	client *openai.Client
}

var (
	cacheMu    sync.Mutex
	cacheStore = map[string]cacheEntry{}
	cacheTTL   = 60 * time.Second
)

type cacheEntry struct {
	value analytics.Spec
	exp   time.Time
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (r RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}

const systemPrompt = `You translate questions about classified customer tickets into a JSON aggregation request.
Answer with one JSON object and nothing else:
{"chart_type": "bar" | "line", "title": string, "group_by": column or [row_column, col_column],
 "filter_col": column (optional), "filter_val": value or list of values (optional), "top_n": positive integer (optional)}
Available columns: %s.`

func (a *OpenAITranslator) Translate(ctx context.Context, question string, history []ChatMessage) (analytics.Spec, error) {
	if strings.TrimSpace(a.BaseURL) == "" {
		return analytics.Spec{}, fmt.Errorf("ASSISTANT_BASE_URL is not set")
	}
	if strings.TrimSpace(a.Model) == "" {
		return analytics.Spec{}, fmt.Errorf("ASSISTANT_MODEL is not set")
	}

	key := cacheKey(a.Model, question, history)
	if v, ok := cacheGet(key); ok {
		return v, nil
	}

	a.once.Do(func() {
		cfg := openai.DefaultConfig(a.APIKey)
		cfg.BaseURL = strings.TrimSuffix(a.BaseURL, "/")
		a.client = openai.NewClientWithConfig(cfg)
	})

	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPrompt, strings.Join(analytics.Columns(), ", ")),
	}}
	for _, h := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 45*time.Second)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		Messages:  messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return analytics.Spec{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return analytics.Spec{}, fmt.Errorf("empty assistant response")
	}

	spec, err := ParseSpec(resp.Choices[0].Message.Content)
	if err != nil {
		return analytics.Spec{}, err
	}
	cacheSet(key, spec)
	return spec, nil
}

// ParseSpec decodes a spec from model output, tolerating a fenced code block.
func ParseSpec(content string) (analytics.Spec, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	var spec analytics.Spec
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &spec); err != nil {
		return analytics.Spec{}, fmt.Errorf("assistant returned an unreadable spec: %w", err)
	}
	return spec, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("assistant request timed out")
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return RateLimitError{}
		}
		return fmt.Errorf("assistant http error: %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return RateLimitError{}
	}
	return fmt.Errorf("assistant request failed: %w", err)
}

// cacheKey covers the model, the conversation history and the question.
func cacheKey(model, question string, history []ChatMessage) string {
	h := fnv.New64a()
	for _, m := range history {
		_, _ = h.Write([]byte(m.Role))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(m.Content))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%s|%x|%s", model, h.Sum64(), strings.TrimSpace(question))
}

func cacheGet(key string) (analytics.Spec, bool) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if e, ok := cacheStore[key]; ok {
		if time.Now().Before(e.exp) {
			return e.value, true
		}
		delete(cacheStore, key)
	}
	return analytics.Spec{}, false
}

func cacheSet(key string, value analytics.Spec) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cacheStore[key] = cacheEntry{
		value: value,
		exp:   time.Now().Add(cacheTTL),
	}
}

// KeywordTranslator maps a question to a histogram by keyword. It stands in
// for the model when none is configured.
type KeywordTranslator struct{}

var keywordColumns = []struct {
	keys   []string
	column string
	title  string
}{
	{[]string{"город", "city", "cities"}, "city_original", "Обращения по городам"},
	{[]string{"офис", "office"}, "office", "Обращения по офисам"},
	{[]string{"тональн", "sentiment"}, "sentiment", "Тональность обращений"},
	{[]string{"язык", "language"}, "language", "Языки обращений"},
	{[]string{"менеджер", "manager"}, "manager", "Обращения по менеджерам"},
	{[]string{"приоритет", "priority"}, "priority_tier", "Приоритеты"},
	{[]string{"сегмент", "segment"}, "segment", "Сегменты"},
}

func (KeywordTranslator) Translate(_ context.Context, question string, _ []ChatMessage) (analytics.Spec, error) {
	q := strings.ToLower(question)
	spec := analytics.Spec{ChartType: analytics.ChartBar, Title: "Обращения по типу", GroupBy: analytics.GroupBy{"type"}}
	for _, k := range keywordColumns {
		for _, key := range k.keys {
			if strings.Contains(q, key) {
				spec.GroupBy = analytics.GroupBy{k.column}
				spec.Title = k.title
				return spec, nil
			}
		}
	}
	return spec, nil
}
