package logic

import (
	"regexp"
	"strings"

	"companion-chat/internal/models"
)

// mentionRegex matches @name patterns with Unicode support.
// First character must be a letter (any language), followed by letters,
// numbers, or underscores.
var mentionRegex = regexp.MustCompile(`@(\p{L}[\p{L}\p{N}_]*)`)

// ParseMentions extracts mention names from a message content.
// Returns a unique list of mentioned names (without @ prefix).
func ParseMentions(content string) []string {
	matches := mentionRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var mentions []string

	for _, match := range matches {
		if len(match) > 1 {
			name := match[1]
			if !seen[name] {
				seen[name] = true
				mentions = append(mentions, name)
			}
		}
	}

	return mentions
}

// MentionedPersonas returns the room members mentioned by name in the
// content, case-insensitively. When the user addresses specific personas
// this overrides the random turn selection.
func MentionedPersonas(content string, members []models.Persona) []models.Persona {
	mentions := ParseMentions(content)
	if len(mentions) == 0 {
		return nil
	}

	byName := make(map[string]models.Persona)
	for _, member := range members {
		byName[strings.ToLower(member.Name)] = member
	}

	var mentioned []models.Persona
	for _, mention := range mentions {
		if persona, ok := byName[strings.ToLower(mention)]; ok {
			mentioned = append(mentioned, persona)
		}
	}

	return mentioned
}
