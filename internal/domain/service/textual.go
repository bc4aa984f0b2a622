package service

import (
	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
)

// collectRequestText gathers every textual field of the request in
// traversal order: the system prompt, then each message's string-form
// content or block-form text, descending into nested blocks. Both the
// injection scanner and the alignment budget estimate depend on this
// covering all text a model would see.
func collectRequestText(req *entity.Request) []string {
	var out []string
	if req.SystemPrompt != "" {
		out = append(out, req.SystemPrompt)
	}
	for _, msg := range req.Messages {
		if len(msg.Blocks) > 0 {
			out = appendBlockText(out, msg.Blocks)
			continue
		}
		if msg.Content != "" {
			out = append(out, msg.Content)
		}
	}
	return out
}

func appendBlockText(out []string, blocks []entity.ContentBlock) []string {
	for _, b := range blocks {
		if b.Text != "" {
			out = append(out, b.Text)
		}
		if len(b.Content) > 0 {
			out = appendBlockText(out, b.Content)
		}
	}
	return out
}
