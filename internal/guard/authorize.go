package guard

import (
	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/lifecycle"
	"github.com/meowecho-tech/vote/internal/models"
)

var (
	ErrUnauthenticated = apperr.New(apperr.KindAuthentication, "unauthenticated", "sign in required")
	ErrForbidden       = apperr.New(apperr.KindAuthorization, "forbidden", "role not permitted for this action")
)

type Action string

const (
	ActionViewElections   Action = "view_elections"
	ActionManageElections Action = "manage_elections"
	ActionPublish         Action = "publish"
	ActionClose           Action = "close"
	ActionEditContest     Action = "edit_contest"
	ActionDeleteContest   Action = "delete_contest"
	ActionEditCandidate   Action = "edit_candidate"
	ActionEditVoterRoll   Action = "edit_voter_roll"
	ActionViewVoterRoll   Action = "view_voter_roll"
	ActionViewResults     Action = "view_results"
	ActionVote            Action = "vote"
)

var (
	managers = []models.Role{models.RoleAdmin, models.RoleElectionOfficer}
	readers  = []models.Role{models.RoleAdmin, models.RoleElectionOfficer, models.RoleAuditor}
	voters   = []models.Role{models.RoleVoter, models.RoleAdmin}
)

var actionRoles = map[Action][]models.Role{
	ActionViewElections:   readers,
	ActionManageElections: managers,
	ActionPublish:         managers,
	ActionClose:           managers,
	ActionEditContest:     managers,
	ActionDeleteContest:   managers,
	ActionEditCandidate:   managers,
	ActionEditVoterRoll:   managers,
	ActionViewVoterRoll:   readers,
	ActionViewResults:     readers,
	ActionVote:            voters,
}

// RolesFor lists the roles that may attempt action.
func RolesFor(action Action) []models.Role {
	return actionRoles[action]
}

func roleIn(role models.Role, roles []models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize combines the caller's role with the election state. An empty
// role means no session. The first failing rule wins: role, then state.
// Creating an election is checked with ElectionStatusDraft.
func Authorize(role models.Role, action Action, status models.ElectionStatus) error {
	if role == "" {
		return ErrUnauthenticated
	}
	roles, known := actionRoles[action]
	if !known || !roleIn(role, roles) {
		return ErrForbidden
	}

	switch action {
	case ActionManageElections, ActionEditContest, ActionEditCandidate, ActionEditVoterRoll, ActionDeleteContest:
		return lifecycle.EnsureEditable(status)
	case ActionPublish:
		return lifecycle.ValidateTransition(status, models.ElectionStatusPublished)
	case ActionClose:
		return lifecycle.ValidateTransition(status, models.ElectionStatusClosed)
	case ActionViewResults:
		return lifecycle.EnsureResultsReadable(status)
	case ActionVote:
		if status != models.ElectionStatusPublished {
			return lifecycle.ErrNotOpen
		}
	}
	return nil
}
