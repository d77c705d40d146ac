package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const MaxMessageLength = 4000

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// Error joins the field messages in field order so ValidationErrors can be
// returned as an error.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, v[f]))
	}
	return strings.Join(parts, "; ")
}

func ValidateMessage(senderID, recipientID, text string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(recipientID) == "" {
		errs.Add("recipientId", "Recipient is required")
	} else if recipientID == senderID {
		errs.Add("recipientId", "Cannot send a message to yourself")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		errs.Add("text", "Message text is required")
	} else if utf8.RuneCountInString(text) > MaxMessageLength {
		errs.Add("text", "Message is too long")
	}

	return errs
}

func ValidateLike(userID, targetID string) ValidationErrors {
	errs := make(ValidationErrors)

	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		errs.Add("targetUserId", "Target user is required")
	} else if targetID == userID {
		errs.Add("targetUserId", "Cannot like yourself")
	}

	return errs
}
