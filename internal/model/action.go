package model

// Role is the caller's role on the platform.
type Role string

// Role constants.
const (
	RoleBuyer   Role = "BUYER"
	RoleSeller  Role = "SELLER"
	RoleArbiter Role = "ARBITRE"
	RoleAdmin   Role = "ADMIN"
)

// Action is a user-triggerable operation on a transaction.
type Action string

// Action constants. MarkDelivered and ConfirmDelivery are the values the
// actions endpoint accepts; Pay and Dispute open their own flows.
const (
	ActionPay             Action = "pay"
	ActionConfirmDelivery Action = "confirm_delivery"
	ActionDispute         Action = "dispute"
	ActionMarkDelivered   Action = "mark_delivered"
)

// Label returns the button caption for the action.
func (a Action) Label() string {
	switch a {
	case ActionPay:
		return "Payer"
	case ActionConfirmDelivery:
		return "Confirmer"
	case ActionDispute:
		return "Litige"
	case ActionMarkDelivered:
		return "Marquer livré"
	default:
		return string(a)
	}
}

// Endpoint reports whether the action is dispatched through the
// transaction actions endpoint rather than a dedicated flow.
func (a Action) Endpoint() bool {
	return a == ActionConfirmDelivery || a == ActionMarkDelivered
}

// actionTable is the complete (role, status) -> actions mapping. Every role
// has a row for every status so a missing entry is visible in review; the
// server remains the authority on what is actually permitted.
var actionTable = map[Role]map[TransactionStatus][]Action{
	RoleBuyer: {
		StatusPending:          {ActionPay},
		StatusPaymentPending:   nil,
		StatusPaymentConfirmed: {ActionDispute},
		StatusDelivered:        {ActionConfirmDelivery, ActionDispute},
		StatusCompleted:        nil,
		StatusCancelled:        nil,
		StatusDisputed:         nil,
	},
	RoleSeller: {
		StatusPending:          nil,
		StatusPaymentPending:   nil,
		StatusPaymentConfirmed: {ActionMarkDelivered},
		StatusDelivered:        nil,
		StatusCompleted:        nil,
		StatusCancelled:        nil,
		StatusDisputed:         nil,
	},
}

// ActionsFor returns the ordered actions offered to role for a transaction
// in status. Unknown roles and statuses get no actions.
func ActionsFor(role Role, status TransactionStatus) []Action {
	row, ok := actionTable[role]
	if !ok {
		return nil
	}
	actions := row[status]
	if len(actions) == 0 {
		return nil
	}
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Allows reports whether action is offered to role in status.
func Allows(role Role, status TransactionStatus, action Action) bool {
	for _, a := range ActionsFor(role, status) {
		if a == action {
			return true
		}
	}
	return false
}
