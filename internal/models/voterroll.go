package models

type IssueReason string

const (
	IssueDuplicateInPayload IssueReason = "duplicate_in_payload"
	IssueUserNotFound       IssueReason = "user_not_found"
	IssueAlreadyInRoll      IssueReason = "already_in_roll"
)

type ImportIssue struct {
	Row        int         `json:"row"`
	Identifier string      `json:"identifier"`
	Reason     IssueReason `json:"reason"`
}

// ImportReport has the same shape for dry runs and applied imports; only
// InsertedRows differs.
type ImportReport struct {
	DryRun            bool          `json:"dry_run"`
	TotalRows         int           `json:"total_rows"`
	ValidRows         int           `json:"valid_rows"`
	InsertedRows      int           `json:"inserted_rows"`
	DuplicateRows     int           `json:"duplicate_rows"`
	AlreadyInRollRows int           `json:"already_in_roll_rows"`
	NotFoundRows      int           `json:"not_found_rows"`
	Issues            []ImportIssue `json:"issues"`
}
