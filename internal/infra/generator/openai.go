// Package generator provides quest generation collaborators: a client for
// OpenAI-compatible chat-completion APIs, a local template pool and a
// fallback that composes them.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	BaseURL     string        // e.g. https://api.openai.com
	APIKey      string
	Model       string        // default gpt-4o-mini
	Temperature float64       // default 0.8
	Timeout     time.Duration // per request, default 30s
}

// OpenAI generates quests through an OpenAI-compatible chat-completions
// endpoint. One request per call, no retries.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
}

var _ domain.QuestGenerator = (*OpenAI)(nil)

// NewOpenAI creates a client.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("generator: base url is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &OpenAI{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// generatedQuest is the JSON object the model is asked to return.
type generatedQuest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	GoalType    string `json:"goal_type"`
	GoalCount   int    `json:"goal_count"`
	XPReward    int64  `json:"xp_reward"`
	PointReward int64  `json:"point_reward"`
	Location    string `json:"location"`
	TimeContext string `json:"time_context"`
}

const systemPrompt = `You design short real-world rejection therapy quests.
Reply with one JSON object with keys: title, description, goal_type
(one of COLLECT_NOS, COLLECT_YES, TAKE_ACTION), goal_count (1-20),
xp_reward, point_reward, location, time_context.`

// Generate asks the model for one quest.
func (o *OpenAI) Generate(ctx context.Context, req domain.GenerateRequest) (domain.QuestTemplate, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature:    o.cfg.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return domain.QuestTemplate{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.QuestTemplate{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return domain.QuestTemplate{}, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.QuestTemplate{}, fmt.Errorf("read response: %w", err)
	}
	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return domain.QuestTemplate{}, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if cr.Error != nil && cr.Error.Message != "" {
			msg = cr.Error.Message
		}
		return domain.QuestTemplate{}, fmt.Errorf("chat completion: HTTP %d: %s", resp.StatusCode, msg)
	}
	if len(cr.Choices) == 0 {
		return domain.QuestTemplate{}, fmt.Errorf("chat completion: no choices")
	}

	var q generatedQuest
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &q); err != nil {
		return domain.QuestTemplate{}, fmt.Errorf("decode quest: %w", err)
	}
	return domain.QuestTemplate{
		Title:       strings.TrimSpace(q.Title),
		Description: strings.TrimSpace(q.Description),
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		GoalType:    domain.GoalType(strings.ToUpper(q.GoalType)),
		GoalCount:   q.GoalCount,
		XPReward:    q.XPReward,
		PointReward: q.PointReward,
		Location:    q.Location,
		TimeContext: q.TimeContext,
		Generated:   true,
	}, nil
}

func userPrompt(req domain.GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\nDifficulty: %s\n", req.Category, req.Difficulty)
	if req.Location != nil {
		if req.Location.PlaceName != "" {
			fmt.Fprintf(&b, "Near: %s\n", req.Location.PlaceName)
		} else {
			fmt.Fprintf(&b, "Near: %.4f,%.4f\n", req.Location.Latitude, req.Location.Longitude)
		}
	}
	if req.Prompt != "" {
		b.WriteString(req.Prompt)
	}
	return b.String()
}
