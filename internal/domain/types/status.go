package types

// RequestStatus is the lifecycle status of a trip request.
type RequestStatus string

func (s RequestStatus) String() string {
	return string(s)
}

const (
	StatusDraft      RequestStatus = "DRAFT"
	StatusPending    RequestStatus = "PENDING"
	StatusConfirmed  RequestStatus = "CONFIRMED"
	StatusInProgress RequestStatus = "IN_PROGRESS"
	StatusCompleted  RequestStatus = "COMPLETED"
	StatusCancelled  RequestStatus = "CANCELLED"
)

// AllStatuses lists every valid request status.
var AllStatuses = []RequestStatus{
	StatusDraft,
	StatusPending,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// IsValid reports whether s is a member of the status enum.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed from s.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}
