package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Role identifies which side of a workspace a participant is on.
type Role string

const (
	RoleStudent Role = "student"
	RoleCompany Role = "company"
)

// Limits enforced before any network call.
const (
	MaxBodyRunes      = 2000
	MaxAttachments    = 3
	MaxAttachmentSize = 10 << 20 // 10 MiB
)

var (
	ErrEmptyMessage       = errors.New("message requires text or at least one attachment")
	ErrBodyTooLong        = errors.New("message body exceeds 2000 characters")
	ErrTooManyAttachments = errors.New("a message carries at most 3 attachments")
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
	ErrAttachmentType     = errors.New("attachment type not allowed")
)

// allowedMimePrefixes gates uploads; documents and images only.
var allowedMimePrefixes = []string{
	"image/",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"text/plain",
	"application/zip",
}

// Attachment is one file carried by a message.
type Attachment struct {
	URL          string `json:"url"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	SizeBytes    int64  `json:"sizeBytes"`
}

// Message is one chat entry in a project workspace.
//
// ID is stable once server-assigned; optimistic entries carry a
// locally-generated temp id until the server echo replaces them.
// CreatedAt is the authoritative ordering key.
type Message struct {
	ID                string       `json:"id"`
	Body              string       `json:"body"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	SenderID          string       `json:"senderId"`
	SenderRole        Role         `json:"senderRole"`
	SenderDisplayName string       `json:"senderDisplayName"`
	CreatedAt         time.Time    `json:"createdAt"`
	Optimistic        bool         `json:"optimistic,omitempty"`
}

// Participant is one side of a workspace pairing.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// TypingState is an ephemeral per-counterpart record. Created on a
// typing_start signal, refreshed on repeats, destroyed on typing_stop or
// after the signal TTL elapses. Never persisted.
type TypingState struct {
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	Role         Role      `json:"role"`
	LastSignalAt time.Time `json:"lastSignalAt"`
}

// Pagination tracks backfill progress through message history.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasMore     bool `json:"hasMore"`
}

// ValidateDraft rejects a message before any network call is made.
func ValidateDraft(body string, attachments []Attachment) error {
	if strings.TrimSpace(body) == "" && len(attachments) == 0 {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxBodyRunes {
		return ErrBodyTooLong
	}
	if len(attachments) > MaxAttachments {
		return ErrTooManyAttachments
	}
	for _, a := range attachments {
		if a.SizeBytes > MaxAttachmentSize {
			return ErrAttachmentTooLarge
		}
		if !mimeAllowed(a.MimeType) {
			return ErrAttachmentType
		}
	}
	return nil
}

func mimeAllowed(mime string) bool {
	for _, p := range allowedMimePrefixes {
		if strings.HasPrefix(mime, p) {
			return true
		}
	}
	return false
}
