// Package ai classifies review sentiment and drafts owner replies with an
// OpenAI compatible chat completions endpoint.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/maheshrc27/locaposty/internal/models"
)

const DefaultBaseURL = "https://api.openai.com/v1"

var ErrNotConfigured = errors.New("ai: api key not configured")

type Assistant interface {
	ClassifySentiment(ctx context.Context, review *models.Review) (models.Sentiment, error)
	GenerateReply(ctx context.Context, review *models.Review, tone models.ReplyTone, sentiment models.Sentiment) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type openAIAssistant struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewAssistant(apiKey, model, baseURL string, httpClient *http.Client) Assistant {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &openAIAssistant{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (a *openAIAssistant) complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	if a.apiKey == "" {
		return "", ErrNotConfigured
	}

	var response chatResponse
	err := requests.URL(a.baseURL+"/chat/completions").
		Method(http.MethodPost).
		Client(a.httpClient).
		Bearer(a.apiKey).
		BodyJSON(chatRequest{
			Model: a.model,
			Messages: []chatMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
			Temperature: temperature,
			MaxTokens:   maxTokens,
		}).
		ToJSON(&response).
		Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(response.Choices) < 1 {
		return "", errors.New("chat completion: empty choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func (a *openAIAssistant) ClassifySentiment(ctx context.Context, review *models.Review) (models.Sentiment, error) {
	answer, err := a.complete(ctx, sentimentPrompt, reviewText(review), 0, 5)
	if err != nil {
		return "", err
	}
	return ParseSentiment(answer, review.StarRating), nil
}

func (a *openAIAssistant) GenerateReply(ctx context.Context, review *models.Review, tone models.ReplyTone, sentiment models.Sentiment) (string, error) {
	reply, err := a.complete(ctx, replyPrompt(tone, sentiment), reviewText(review), 0.7, 300)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", errors.New("chat completion: empty reply")
	}
	return reply, nil
}

// ParseSentiment reads the model's label. When the answer is not one of the
// three labels the star rating decides.
func ParseSentiment(answer string, stars int) models.Sentiment {
	label := strings.ToUpper(strings.Trim(strings.TrimSpace(answer), ".\"'"))
	switch models.Sentiment(label) {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
		return models.Sentiment(label)
	}

	switch {
	case stars > 0 && stars <= 2:
		return models.SentimentNegative
	case stars == 3:
		return models.SentimentNeutral
	default:
		return models.SentimentPositive
	}
}

const sentimentPrompt = `You classify customer reviews of a local business.
Answer with exactly one word: POSITIVE, NEUTRAL or NEGATIVE.`

var toneGuides = map[models.ReplyTone]string{
	models.ReplyToneProfessional: "professional and courteous",
	models.ReplyToneFriendly:     "warm and friendly",
	models.ReplyToneCasual:       "relaxed and casual",
	models.ReplyToneFormal:       "formal and polite",
}

func replyPrompt(tone models.ReplyTone, sentiment models.Sentiment) string {
	guide, ok := toneGuides[tone]
	if !ok {
		guide = toneGuides[models.ReplyToneProfessional]
	}

	var b strings.Builder
	b.WriteString("You write the business owner's public reply to a Google review.\n")
	b.WriteString("Tone: " + guide + ".\n")
	if sentiment == models.SentimentNegative {
		b.WriteString("The customer is unhappy. Apologise, do not argue, and invite them to get in touch directly.\n")
	} else {
		b.WriteString("Thank the customer and mention something specific from the review when possible.\n")
	}
	b.WriteString("Keep it under 80 words. Do not sign with a name. Reply with the text only.")
	return b.String()
}

func reviewText(review *models.Review) string {
	comment := review.Comment
	if comment == "" {
		comment = "(no text, rating only)"
	}
	return fmt.Sprintf("Reviewer: %s\nRating: %d/5\nReview: %s", review.ReviewerName, review.StarRating, comment)
}
