package service

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/guardgate/guardgate/gateway/internal/domain/entity"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Visa, MasterCard, Discover (16 digits) and Amex (15 digits), with or
	// without space/dash separators.
	cardPattern = regexp.MustCompile(`\b(?:(?:4\d{3}|5[1-5]\d{2}|6(?:011|5\d{2}))[ \-]?\d{4}[ \-]?\d{4}[ \-]?\d{4}|3[47]\d{2}[ \-]?\d{6}[ \-]?\d{5})\b`)

	// Candidate SSNs; invalid area/group/serial ranges are rejected in
	// validSSN since RE2 has no lookahead.
	ssnPattern = regexp.MustCompile(`\b\d{3}[\- ]\d{2}[\- ]\d{4}\b`)

	phonePattern = regexp.MustCompile(`(?:\+?\d{1,3}[\-. ]?)?(?:\(\d{3}\)[\-. ]?|\d{3}[\-. ])\d{3}[\-. ]\d{4}\b`)
)

const (
	emailPlaceholder = "[EMAIL]"
	cardPlaceholder  = "[CC]"
	ssnPlaceholder   = "[SSN]"
	phonePlaceholder = "[PHONE]"
)

// PIIMasker replaces PII patterns in textual request fields with bracketed
// placeholders. It is a transformer, never a block: masking produces a
// fresh request value and the original is not mutated. Masking is
// idempotent: placeholders contain no digits or @-signs to re-match.
type PIIMasker struct {
	logger *zap.Logger
}

// NewPIIMasker creates a PII masker.
func NewPIIMasker(logger *zap.Logger) *PIIMasker {
	return &PIIMasker{logger: logger}
}

// Mask returns the request with PII redacted. When redact is false the
// original request is returned unchanged.
func (m *PIIMasker) Mask(req *entity.Request, redact bool) *entity.Request {
	if !redact {
		return req
	}

	masked := req.Clone()
	masked.SystemPrompt = maskText(masked.SystemPrompt)
	for i := range masked.Messages {
		masked.Messages[i].Content = maskText(masked.Messages[i].Content)
		maskBlocks(masked.Messages[i].Blocks)
	}
	return masked
}

func maskBlocks(blocks []entity.ContentBlock) {
	for i := range blocks {
		blocks[i].Text = maskText(blocks[i].Text)
		maskBlocks(blocks[i].Content)
	}
}

// maskText applies the replacement table in order: email, credit card,
// SSN, phone. Each pattern is applied globally.
func maskText(text string) string {
	if text == "" {
		return text
	}
	text = emailPattern.ReplaceAllString(text, emailPlaceholder)
	text = cardPattern.ReplaceAllString(text, cardPlaceholder)
	text = ssnPattern.ReplaceAllStringFunc(text, func(match string) string {
		if validSSN(match) {
			return ssnPlaceholder
		}
		return match
	})
	text = phonePattern.ReplaceAllString(text, phonePlaceholder)
	return text
}

// validSSN rejects the structurally invalid SSN ranges: area 000, 666 or
// 9xx, group 00, serial 0000.
func validSSN(candidate string) bool {
	digits := strings.FieldsFunc(candidate, func(r rune) bool {
		return r == '-' || r == ' '
	})
	if len(digits) != 3 {
		return false
	}
	area, group, serial := digits[0], digits[1], digits[2]

	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}
	return true
}
