// Package command parses bot commands into a closed set of known values.
package command

import (
	"strings"
	"unicode"
)

// Command is one of the commands the bot understands.
type Command int

const (
	// None marks text that is not a known command; it goes to the echo handler.
	None Command = iota
	Start
	Help
	Menu
	Scream
	Whisper
)

const prefix = "/"

var names = map[Command]string{
	Start:   "start",
	Help:    "help",
	Menu:    "menu",
	Scream:  "scream",
	Whisper: "whisper",
}

var descriptions = map[Command]string{
	Start:   "Greeting",
	Help:    "List available modes",
	Menu:    "Show the inline menu",
	Scream:  "Reply in upper case",
	Whisper: "Reply unchanged",
}

// All lists the known commands in menu order.
func All() []Command {
	return []Command{Start, Help, Menu, Scream, Whisper}
}

// Name returns the command without the leading slash.
func (c Command) Name() string {
	return names[c]
}

// Description returns the text published in the client command menu.
func (c Command) Description() string {
	return descriptions[c]
}

// String returns the slash-prefixed form, or "none".
func (c Command) String() string {
	if n, ok := names[c]; ok {
		return prefix + n
	}
	return "none"
}

// Parse recognizes "/name", "/name args" and "/name@bot args". A mention of a
// different bot yields None. botUsername may be empty when the bot identity is
// unknown, in which case any mention is accepted.
func Parse(text, botUsername string) Command {
	if !strings.HasPrefix(text, prefix) {
		return None
	}

	word := text[len(prefix):]
	if i := strings.IndexFunc(word, unicode.IsSpace); i >= 0 {
		word = word[:i]
	}

	name, mention, hasMention := strings.Cut(word, "@")
	if hasMention && botUsername != "" && !strings.EqualFold(mention, botUsername) {
		return None
	}

	for _, c := range All() {
		if names[c] == name {
			return c
		}
	}
	return None
}
