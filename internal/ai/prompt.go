package ai

import (
	"fmt"
	"math"
	"strings"

	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// promptLabels are the human labels printed next to each KPI percentage.
var promptLabels = map[scoring.KPI]string{
	scoring.StoryLikeRate:               "Story likes",
	scoring.ConversationInitiationRatio: "Starts conversations",
	scoring.ReplySpeedScore:             "Reply speed",
	scoring.DateCountScore:              "Dates",
	scoring.GiftScore:                   "Gifts",
	scoring.EmotionalInterestScore:      "Emotional interest",
	scoring.FuturePlansScore:            "Future plans",
}

const promptInstructions = `Write a short reply (max 120 words) for the user:
1. Open with an emotional hook (a fun emoji)
2. Explain what the signals show (2-3 key points)
3. Give one practical tip or some encouragement
4. Finish playful and optimistic

Tone: friendly, empathetic, lightly flirty, with subtle humour. Do NOT be condescending. Do NOT use clichés like "don't lose hope".`

// BuildPrompt renders the explanation request. Each KPI is shown as a whole
// percentage; the rounding is for display only and never touches kpis.
// Missing KPIs are shown as 0%.
func BuildPrompt(score int, category scoring.Category, kpis scoring.AnswerSet) string {
	var sb strings.Builder
	sb.WriteString("You are CrushBot, a funny and empathetic AI that analyses signals of romantic interest.\n\n")
	fmt.Fprintf(&sb, "Final score: %d%%\n", score)
	fmt.Fprintf(&sb, "Category: %s\n", category)
	sb.WriteString("KPI details:\n")
	for _, k := range scoring.AllKPIs() {
		fmt.Fprintf(&sb, "- %s: %d%%\n", promptLabels[k], displayPercent(kpis.Get(k)))
	}
	sb.WriteString("\n")
	sb.WriteString(promptInstructions)
	return sb.String()
}

func displayPercent(v float64) int {
	return int(math.Round(v * 100))
}
