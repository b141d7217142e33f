package domain

import "strings"

// Status is the server-owned project lifecycle state. This module only
// reads it; transitions happen on the backend.
type Status string

const (
	StatusAssigned          Status = "assigned"
	StatusInProgress        Status = "in-progress"
	StatusSubmitted         Status = "submitted"
	StatusUnderReview       Status = "under-review"
	StatusRevisionRequested Status = "revision-requested"
	StatusApproved          Status = "approved"
	StatusCompleted         Status = "completed"
)

// NormalizeStatus maps raw backend status strings onto the canonical
// enum: lowercased, trimmed, underscores and spaces collapsed to dashes.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return Status(s)
}

// Project is the workspace-relevant slice of a marketplace project.
type Project struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}
