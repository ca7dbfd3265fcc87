package logic

import (
	"fmt"
	"strings"

	"companion-chat/internal/models"
)

// FormatUserLine formats the user's message for the transcript
// Format:
//
//	Name: User
//	Message:
//	{content}
func FormatUserLine(content string) string {
	return fmt.Sprintf("Name: User\nMessage:\n%s", content)
}

// FormatPersonaLine formats a persona's message for the transcript
// Format:
//
//	Name: (Persona) {name}
//	Message:
//	{content}
func FormatPersonaLine(name, content string) string {
	return fmt.Sprintf("Name: (Persona) %s\nMessage:\n%s", name, content)
}

// BuildTranscript renders recent messages as a persona-agnostic
// transcript for the responder prompt. Input is most-recent-first (as
// fetched from the store) and capped at limit; the rendered transcript
// reads oldest-first. Messages separated by "---".
func BuildTranscript(recent []models.Message, limit int) string {
	if limit <= 0 || len(recent) == 0 {
		return ""
	}

	if len(recent) > limit {
		recent = recent[:limit]
	}

	// Reverse into chronological order for the prompt
	var formatted []string
	for i := len(recent) - 1; i >= 0; i-- {
		msg := recent[i]
		if msg.SenderType == models.SenderTypeUser {
			formatted = append(formatted, FormatUserLine(msg.Content))
		} else {
			formatted = append(formatted, FormatPersonaLine(msg.SenderName, msg.Content))
		}
	}

	return strings.Join(formatted, "\n\n---\n\n")
}
