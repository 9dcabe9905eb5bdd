package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/newthinker/signalwatch/internal/core"
)

const commentarySystemPrompt = `You are a market analyst writing for retail traders on the Vietnamese stock exchanges.
You receive the end-of-day report of a signal tracker: buy signals with entry zone, stop-loss and three take-profit targets.
Write two or three short sentences commenting on the day's outcomes. Do not invent prices or symbols that are not in the report.
Do not give investment advice.`

// DefaultCommentaryTokens caps the commentary length.
const DefaultCommentaryTokens = 300

// Commentary asks p for a short remark on a rendered daily summary.
func Commentary(ctx context.Context, p Provider, report string) (string, error) {
	if p == nil {
		return "", nil
	}
	resp, err := p.Chat(ctx, ChatRequest{
		SystemPrompt: commentarySystemPrompt,
		Messages:     []Message{{Role: "user", Content: report}},
		MaxTokens:    DefaultCommentaryTokens,
		Temperature:  0.3,
	})
	if err != nil {
		return "", core.WrapError(core.ErrLLMFailed, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", core.WrapError(core.ErrLLMFailed, errEmptyCompletion)
	}
	return text, nil
}

var errEmptyCompletion = errors.New("empty completion")
