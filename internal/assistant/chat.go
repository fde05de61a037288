package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/shopkeeper/internal/logger"
)

// Apologies shown instead of an answer.
const (
	ApologyUnconfigured = "Sorry, I need the Gemini API key to be configured to help you. Please set SHOPKEEPER_GEMINI_API_KEY."
	ApologyFailed       = "Sorry, I'm having trouble processing your request right now. Please try again."
)

// recentPromptLimit caps how many sales the chat prompt lists.
const recentPromptLimit = 5

// GeminiChat answers questions with a Generator.
type GeminiChat struct {
	gen Generator
}

// NewGeminiChat creates a chat. A nil gen makes every call fail with
// ErrChatUnavailable.
func NewGeminiChat(gen Generator) *GeminiChat {
	return &GeminiChat{gen: gen}
}

// Ask implements Chat.
func (c *GeminiChat) Ask(ctx context.Context, question string, snap Snapshot) (string, error) {
	if c.gen == nil {
		return "", ErrChatUnavailable
	}
	answer, err := c.gen.GenerateText(ctx, BuildChatPrompt(question, snap), nil)
	if err != nil {
		return "", fmt.Errorf("Ask: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// Answer asks chat and never fails: an unconfigured or failing backend
// yields a static apology.
func Answer(ctx context.Context, chat Chat, question string, snap Snapshot) string {
	answer, err := chat.Ask(ctx, question, snap)
	if err == nil {
		return answer
	}

	log := logger.FromContext(ctx)
	log.Warn().Err(err).Msg("Chat backend unavailable")
	if errors.Is(err, ErrChatUnavailable) {
		return ApologyUnconfigured
	}
	return ApologyFailed
}

// BuildChatPrompt renders the shop snapshot and the question.
func BuildChatPrompt(question string, snap Snapshot) string {
	loc := snap.Location
	if loc == nil {
		loc = time.Local
	}
	name := snap.Profile.Name
	if name == "" {
		name = "Shop"
	}
	shopType := snap.Profile.Type
	if shopType == "" {
		shopType = "General Store"
	}

	var b strings.Builder
	b.WriteString("You are a helpful assistant for an Indian shopkeeper. Respond in a friendly, conversational tone.\n")
	b.WriteString("You can respond in English, Hindi, or Kannada based on the user's language preference.\n\n")
	b.WriteString("Shop Details:\n")
	fmt.Fprintf(&b, "- Name: %s\n", name)
	fmt.Fprintf(&b, "- Type: %s\n\n", shopType)

	b.WriteString("Current Inventory:\n")
	for _, it := range snap.Inventory {
		fmt.Fprintf(&b, "%s: %d units (₹%s each)\n", it.Name, it.Quantity, it.UnitPrice.String())
	}

	b.WriteString("\nRecent Transactions (last 5):\n")
	for i, tx := range snap.Recent {
		if i == recentPromptLimit {
			break
		}
		items := make([]string, 0, len(tx.Lines))
		for _, l := range tx.Lines {
			items = append(items, fmt.Sprintf("%dx %s", l.Quantity, l.Name))
		}
		basket := "Unknown"
		if len(items) > 0 {
			basket = strings.Join(items, ", ")
		}
		fmt.Fprintf(&b, "₹%s - %s (%s)\n", tx.Amount.String(), basket, tx.Timestamp.In(loc).Format("02/01/2006, 15:04"))
	}

	fmt.Fprintf(&b, "\nToday's Sales: ₹%s\n\n", snap.TodayTotal.String())
	fmt.Fprintf(&b, "User Question: %s\n\n", question)
	b.WriteString("Provide helpful, accurate information based on the shop data. Keep responses concise and practical.\n")
	return b.String()
}
