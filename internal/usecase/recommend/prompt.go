package recommend

import (
	"fmt"
	"strings"

	"github.com/relevo-cloud/relevo/internal/domain"
)

const systemPreamble = "You are a helpful assistant that recommends catalog items. " +
	"Base your suggestions only on the items listed below and the conversation. " +
	"If none of them fit, say so instead of inventing alternatives."

// buildMessages assembles the ordered completion request: one system
// instruction embedding the recommended items, the prior history as
// alternating assistant/user turns, and the new user message last.
func buildMessages(
	recs []domain.Recommendation, history []domain.Turn, userMessage string,
) []domain.Message {
	messages := make([]domain.Message, 0, len(history)+2)

	messages = append(messages, domain.Message{
		Role:    domain.RoleSystem,
		Content: systemContent(recs),
	})

	for _, turn := range history {
		role := domain.RoleUser
		if turn.IsBot {
			role = domain.RoleAssistant
		}
		messages = append(messages, domain.Message{Role: role, Content: turn.Text})
	}

	messages = append(messages, domain.Message{
		Role:    domain.RoleUser,
		Content: userMessage,
	})

	return messages
}

func systemContent(recs []domain.Recommendation) string {
	var b strings.Builder
	b.WriteString(systemPreamble)

	if len(recs) == 0 {
		b.WriteString("\n\nNo matching catalog items were found for this request.")
		return b.String()
	}

	b.WriteString("\n\nRelevant catalog items:\n")
	for i, rec := range recs {
		fmt.Fprintf(&b, "%d. %s", i+1, rec.Item.Name)
		if rec.Item.Category != "" {
			fmt.Fprintf(&b, " (%s)", rec.Item.Category)
		}
		if rec.Item.Description != "" {
			b.WriteString(": ")
			b.WriteString(rec.Item.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
