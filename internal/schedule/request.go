package schedule

import "github.com/google/uuid"

// ModificationRequest asks for a candidate item to be admitted into an
// entity's schedule on a specific day. Transient: built per call,
// never stored.
type ModificationRequest struct {
	ID          string   `json:"id"`
	EntityID    EntityID `json:"entity_id"`
	RequesterID EntityID `json:"requester_id"`
	Day         int      `json:"day"`
	Candidate   Item     `json:"candidate"`
	Priority    float64  `json:"priority"`
	Reason      string   `json:"reason,omitempty"`
}

// NewModificationRequest assigns a request ID and fills the candidate's
// item ID if absent.
func NewModificationRequest(entity, requester EntityID, day int, candidate Item, priority float64, reason string) ModificationRequest {
	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	return ModificationRequest{
		ID:          uuid.New().String(),
		EntityID:    entity,
		RequesterID: requester,
		Day:         day,
		Candidate:   candidate,
		Priority:    priority,
		Reason:      reason,
	}
}

// ModificationResult reports the resolver's verdict back to the caller.
// A rejection is a normal outcome, not an error.
type ModificationResult struct {
	RequestID   string   `json:"request_id"`
	Accepted    bool     `json:"accepted"`
	Decision    Decision `json:"decision"`
	Reason      string   `json:"reason,omitempty"`
	Conflicting *Item    `json:"conflicting_item,omitempty"`
	Schedule    []Item   `json:"resulting_schedule,omitempty"`
}
