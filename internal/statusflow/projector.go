// Package statusflow projects the server-owned project status onto the
// ordered progress steps and the role-gated action set. It is a pure
// view: it never writes status.
package statusflow

import "github.com/kmrathod29/seribro-sub002/internal/domain"

// Action is something a participant may do at the current step.
type Action string

const (
	ActionStartWork        Action = "start-work"
	ActionSubmitWork       Action = "submit-work"
	ActionStartReview      Action = "start-review"
	ActionReviewSubmission Action = "review-submission"
	ActionReleasePayment   Action = "release-payment"
	ActionRateCounterpart  Action = "rate-counterpart"
)

// steps is the canonical 7-step sequence shown as progress.
var steps = []domain.Status{
	domain.StatusAssigned,
	domain.StatusInProgress,
	domain.StatusSubmitted,
	domain.StatusUnderReview,
	domain.StatusRevisionRequested,
	domain.StatusApproved,
	domain.StatusCompleted,
}

// Projection is the rendered view of a status.
type Projection struct {
	Status    domain.Status
	StepIndex int
	Steps     []domain.Status
}

// Project normalizes a raw status string and maps it to its step index.
// An unrecognized status degrades to index 0 rather than failing, so
// backend schema drift renders as "first step" instead of a crash.
func Project(raw string) Projection {
	status := domain.NormalizeStatus(raw)
	for i, s := range steps {
		if s == status {
			return Projection{Status: status, StepIndex: i, Steps: steps}
		}
	}
	return Projection{Status: steps[0], StepIndex: 0, Steps: steps}
}

// Actions returns the actions a role may take at the given status.
// rated hides the one-time rate action once a rating is recorded.
func Actions(raw string, role domain.Role, rated bool) []Action {
	status := domain.NormalizeStatus(raw)

	switch status {
	case domain.StatusAssigned:
		if role == domain.RoleStudent {
			return []Action{ActionStartWork}
		}
	case domain.StatusInProgress, domain.StatusRevisionRequested:
		if role == domain.RoleStudent {
			return []Action{ActionSubmitWork}
		}
	case domain.StatusSubmitted:
		if role == domain.RoleCompany {
			return []Action{ActionStartReview}
		}
	case domain.StatusUnderReview:
		if role == domain.RoleCompany {
			return []Action{ActionReviewSubmission}
		}
	case domain.StatusApproved:
		if role == domain.RoleCompany {
			return []Action{ActionReleasePayment}
		}
	case domain.StatusCompleted:
		if !rated {
			return []Action{ActionRateCounterpart}
		}
	}
	return nil
}
