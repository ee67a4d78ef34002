package authz

import (
	"context"

	"clinicq/ehr-service/internal/models"
)

// Policy answers the queue's access questions. Deletion follows the
// creator-only rule: an entry may only be removed by the professional who
// admitted it.
type Policy struct{}

func New() Policy {
	return Policy{}
}

func (Policy) CanDelete(ctx context.Context, requesterID string, entry models.QueueEntry) (bool, error) {
	if requesterID == "" || entry.CreatedBy == "" {
		return false, nil
	}
	return entry.CreatedBy == requesterID, nil
}

func (Policy) AssignedTo(requesterID string, entry models.QueueEntry) bool {
	return requesterID != "" && entry.Professional == requesterID
}
