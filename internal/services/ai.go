package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// TaskDrafter turns free text into task drafts.
type TaskDrafter interface {
	DraftTasks(ctx context.Context, text string) ([]DraftedTask, error)
}

type AIService struct {
	client *openai.Client
	now    func() time.Time
}

type DraftedTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Priority    string     `json:"priority"`
	Deadline    *time.Time `json:"deadline"`
}

// NewAIService returns nil when apiKey is empty so drafting reports itself
// as not configured.
func NewAIService(apiKey string) *AIService {
	if apiKey == "" {
		return nil
	}
	return &AIService{
		client: openai.NewClient(apiKey),
		now:    time.Now,
	}
}

// DraftTasks asks the model to extract retail tasks from text.
func (s *AIService) DraftTasks(ctx context.Context, text string) ([]DraftedTask, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}

	prompt := fmt.Sprintf(`You help store and sales staff plan their work. Extract concrete tasks from the text below.

Current time: %s

Text:
%s

Return a JSON array of tasks in this shape:
[
  {
    "title": "short task title",
    "description": "what needs to be done",
    "type": "one of personal, report, meeting, other",
    "priority": "one of low, medium, high",
    "deadline": "ISO8601 timestamp such as 2025-10-28T23:59:59Z, or null if no deadline is stated"
  }
]

Rules:
- Return [] when there are no tasks
- Convert relative dates such as "tomorrow" or "next week" into timestamps
- Return JSON only, without any explanation`, s.now().Format(time.RFC3339), text)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4o,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return parseDrafts(resp.Choices[0].Message.Content)
}

// parseDrafts accepts the model output with or without a markdown code fence.
func parseDrafts(content string) ([]DraftedTask, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var drafts []DraftedTask
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &drafts); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w (response: %s)", err, content)
	}
	return drafts, nil
}
