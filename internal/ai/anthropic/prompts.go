package anthropic

import (
	"fmt"
	"strings"

	"github.com/DukeRupert/arcana/internal/domain"
)

// buildSystemPrompt sets the reader persona and output language
func buildSystemPrompt(language string) string {
	if language == "" {
		language = "en"
	}
	return fmt.Sprintf(`You are a thoughtful tarot reader. Interpret the cards the querent drew in the order given, relating each card to its position and to the question.
Write in the language identified by the BCP 47 tag %q. Use short markdown sections, one per card, followed by a brief synthesis.
Do not predict death, illness or legal outcomes, and do not give medical, legal or financial advice.`, language)
}

// buildReadingPrompt lists the question and the drawn cards
func buildReadingPrompt(question string, cards []domain.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nCards:\n", question)
	for i, c := range cards {
		orientation := "upright"
		if c.Reversed {
			orientation = "reversed"
		}
		position := c.Position
		if position == "" {
			position = fmt.Sprintf("card %d", i+1)
		}
		fmt.Fprintf(&b, "%d. %s: %s (%s)\n", i+1, position, c.Name, orientation)
	}
	return b.String()
}
