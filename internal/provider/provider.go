// Package provider hides the identity of the active text-generation backend
// behind a failover controller that can toggle between exactly two providers.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// ID identifies one of the two interchangeable generation backends.
type ID string

const (
	// Gemini is the primary backend, served by the Google GenAI API.
	Gemini ID = "gemini"
	// OpenRouter is the backup backend, served by the OpenAI-compatible
	// OpenRouter API.
	OpenRouter ID = "openrouter"
)

// Backup returns the single alternate of the two known backends.
func (id ID) Backup() ID {
	if id == OpenRouter {
		return Gemini
	}
	return OpenRouter
}

// Valid reports whether the identifier names a known backend.
func (id ID) Valid() bool {
	return id == Gemini || id == OpenRouter
}

// Generator is the one capability consumed from a backend: a prompt goes in,
// a reply (or a provider-reported error) comes out.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (Reply, error)
	Name() ID
	Model() string
}

type replyKind int

const (
	replyText replyKind = iota
	replyMessages
	replyUnknown
)

// Message is a single turn produced by a backend.
type Message struct {
	Role    string
	Content string
}

// Reply is the closed set of shapes a generation result can take. Backends
// return either plain text, an ordered list of messages, or an opaque value
// that could not be classified.
type Reply struct {
	kind     replyKind
	text     string
	messages []Message
	raw      any
}

// TextReply wraps a plain text result.
func TextReply(text string) Reply {
	return Reply{kind: replyText, text: text}
}

// MessagesReply wraps an ordered list of produced messages.
func MessagesReply(messages []Message) Reply {
	return Reply{kind: replyMessages, messages: messages}
}

// UnknownReply wraps a result of unrecognized shape.
func UnknownReply(raw any) Reply {
	return Reply{kind: replyUnknown, raw: raw}
}

// Text extracts the produced text deterministically: the content of the last
// message when the reply is a message list, the bare text payload, or the
// stringified raw value as a last resort.
func (r Reply) Text() string {
	switch r.kind {
	case replyText:
		return r.text
	case replyMessages:
		if len(r.messages) == 0 {
			return ""
		}
		return strings.TrimSpace(r.messages[len(r.messages)-1].Content)
	default:
		if r.raw == nil {
			return ""
		}
		return fmt.Sprint(r.raw)
	}
}
