package chat

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/jobmate/backend/internal/model/chat"
	"github.com/jobmate/backend/internal/model/profile"
	"github.com/jobmate/backend/internal/service/retrieval"
)

const systemPolicy = `You are JobMate, a friendly career assistant.
Help the user find suitable jobs, improve their CV, prepare for interviews and understand the job market.
Keep answers concise and practical. If you are unsure, say so instead of inventing facts.
Never invent job listings, salaries or employers that were not given to you.`

const summarizeInstruction = `Summarize the conversation below into a short recap for a career assistant.
Retain every name, date, number, job title, employer and location that was mentioned.
If an earlier recap is included, merge it into the new one. Reply with the recap only.`

// buildSystemPrompt combines the policy, the user's profile and any
// retrieved passages.
func buildSystemPrompt(p *profile.Profile, passages []retrieval.Passage) string {
	var b strings.Builder
	b.WriteString(systemPolicy)

	if p != nil {
		b.WriteString("\n\nAbout the user:")
		if p.Name != "" {
			fmt.Fprintf(&b, "\n- Name: %s", p.Name)
		}
		if p.Location != "" {
			fmt.Fprintf(&b, "\n- Location: %s", p.Location)
		}
		if label := p.ExperienceLevel.Label(); label != "" {
			fmt.Fprintf(&b, "\n- Experience: %s", label)
		}
		if p.JobInterest != "" {
			fmt.Fprintf(&b, "\n- Interested in: %s", p.JobInterest)
		}
	}

	if len(passages) > 0 {
		b.WriteString("\n\nUse the following reference material when it is relevant:\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "---\n[%d]", i+1)
			if p.Source != "" {
				fmt.Fprintf(&b, " (%s)", p.Source)
			}
			b.WriteString("\n")
			b.WriteString(strings.TrimSpace(p.Text))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// historyMessages converts window turns to model messages. The summary
// becomes a system message.
func historyMessages(turns []chat.Turn) []*schema.Message {
	history := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(t.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(t.Content, nil))
		case chat.RoleSummary:
			history = append(history, schema.SystemMessage("Recap of the earlier conversation: "+t.Content))
		case chat.RoleSystem:
			history = append(history, schema.SystemMessage(t.Content))
		}
	}
	return history
}

// transcript renders turns for the summarizer.
func transcript(summary *chat.Turn, turns []chat.Turn) string {
	var b strings.Builder
	if summary != nil {
		b.WriteString("Earlier recap: ")
		b.WriteString(summary.Content)
		b.WriteString("\n\n")
	}
	for _, t := range turns {
		switch t.Role {
		case chat.RoleUser:
			b.WriteString("User: ")
		case chat.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("Note: ")
		}
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
