package domain

type GroupStatus string

const (
	GroupConsistent          GroupStatus = "consistent"
	GroupBlocked             GroupStatus = "blocked"
	GroupPendingConfirmation GroupStatus = "pending-confirmation"
)

// AssignAction describes what the grouping engine did with a document.
type AssignAction string

const (
	ActionJoinedExisting     AssignAction = "joined-existing"
	ActionCreatedNew         AssignAction = "created-new"
	ActionBlockedPendingUser AssignAction = "blocked-pending-user"
	ActionAskUser            AssignAction = "ask-user"
	ActionDiscardedBlank     AssignAction = "discarded-blank"
)

// Resolution is the explicit user decision that clears a blocked or
// pending group. Nothing else may clear it.
type Resolution string

const (
	ResolveConfirmSame      Resolution = "confirm-same"
	ResolveConfirmDifferent Resolution = "confirm-different"
)

func ParseResolution(raw string) (Resolution, bool) {
	switch Resolution(raw) {
	case ResolveConfirmSame, ResolveConfirmDifferent:
		return Resolution(raw), true
	}
	return "", false
}

// ReportGroup is a set of analyzed documents believed to form one clinical
// report. MemberIDs are kept sorted by order index, never arrival order.
type ReportGroup struct {
	Key       string      `json:"key"`
	MemberIDs []string    `json:"member_ids"`
	Status    GroupStatus `json:"status"`

	BlockReasons []string `json:"block_reasons,omitempty"`
	SplitSignals []string `json:"split_signals,omitempty"`

	// PendingFileID holds the document that triggered a block or a
	// cross-hint confirmation prompt. It is not a member until the user
	// confirms.
	PendingFileID string  `json:"pending_file_id,omitempty"`
	PendingScore  float64 `json:"pending_score,omitempty"`
}

func (g *ReportGroup) Contains(fileID string) bool {
	for _, id := range g.MemberIDs {
		if id == fileID {
			return true
		}
	}
	return false
}

// ConsistencyReport is the validator's verdict over a candidate group.
type ConsistencyReport struct {
	Blocked      bool
	Reasons      []string
	SplitSignals []string
}
