package escrow

import "fmt"

// API paths, all relative to the configured base URL.
const (
	PathLogin          = "/api/auth/login/"
	PathLogout         = "/api/auth/logout/"
	PathRegister       = "/api/auth/register/"
	PathProfile        = "/api/auth/profile/"
	PathVerifyPhone    = "/api/auth/verify-phone/"
	PathChangePassword = "/api/auth/change-password/"
	PathTokenRefresh   = "/api/auth/token/refresh/"

	PathTransactions = "/api/escrow/transactions/"
	PathStatistics   = "/api/escrow/statistics/"

	PathPaymentCollect = "/api/payments/momo/collect/"
	PathPaymentHistory = "/api/payments/history/"
	PathPaymentMethods = "/api/payments/methods/"

	PathDisputes = "/api/disputes/"

	PathAdminUsers = "/api/auth/admin/users/"
	PathAuditLogs  = "/api/core/audit-logs/"
)

// TransactionPath is the detail path of a transaction.
func TransactionPath(id int64) string {
	return fmt.Sprintf("/api/escrow/transactions/%d/", id)
}

// TransactionActionsPath is the action dispatch path of a transaction.
func TransactionActionsPath(id int64) string {
	return fmt.Sprintf("/api/escrow/transactions/%d/actions/", id)
}

// TransactionMessagesPath is the message thread path of a transaction.
func TransactionMessagesPath(id int64) string {
	return fmt.Sprintf("/api/escrow/transactions/%d/messages/", id)
}

// PaymentStatusPath is the status path of a payment reference.
func PaymentStatusPath(reference string) string {
	return fmt.Sprintf("/api/payments/momo/status/%s/", reference)
}

// DisputePath is the detail path of a dispute.
func DisputePath(id int64) string {
	return fmt.Sprintf("/api/disputes/%d/", id)
}

// DisputeEvidencePath is the evidence upload path of a dispute.
func DisputeEvidencePath(id int64) string {
	return fmt.Sprintf("/api/disputes/%d/evidence/", id)
}

// DisputeCommentsPath is the comment thread path of a dispute.
func DisputeCommentsPath(id int64) string {
	return fmt.Sprintf("/api/disputes/%d/comments/", id)
}

// AdminUserPath is the admin detail path of a user.
func AdminUserPath(id int64) string {
	return fmt.Sprintf("/api/auth/admin/users/%d/", id)
}

// KYCApprovePath is the admin KYC approval path of a user.
func KYCApprovePath(userID int64) string {
	return fmt.Sprintf("/api/auth/admin/kyc/%d/approve/", userID)
}
