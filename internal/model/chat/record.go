package chat

import "time"

// Record is one persisted exchange: the user's message and the bot response
// produced for it.
type Record struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	UserMessage string    `json:"userMessage"`
	BotResponse string    `json:"botResponse"`
}
