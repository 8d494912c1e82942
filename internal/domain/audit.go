package domain

import "time"

// Логирование мастхев важных действий
type AuditLog struct {
	ID        int64          `db:"id" json:"id"`
	AccountID int64          `db:"account_id" json:"account_id"`
	ActorID   int64          `db:"actor_id" json:"actor_id,omitempty"` // tg id админа, 0 = сам пользователь
	Action    string         `db:"action" json:"action"`
	Category  string         `db:"category" json:"category"`
	Details   map[string]any `db:"details" json:"details"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Категории совершенных действий
const (
	AuditCategoryAccount    = "account"
	AuditCategoryReward     = "reward"
	AuditCategoryWithdrawal = "withdrawal"
	AuditCategoryAdmin      = "admin"
)

const (
	AuditActionRegister = "register"
	AuditActionLogin    = "login"

	AuditActionWithdrawRequest = "withdraw_request"
	AuditActionWithdrawApprove = "withdraw_approve"
	AuditActionWithdrawReject  = "withdraw_reject"

	AuditActionReferralPaid = "referral_paid"

	AuditActionAdminBanUser   = "admin_ban_user"
	AuditActionAdminUnbanUser = "admin_unban_user"
	AuditActionSettingsUpdate = "settings_update"
	AuditActionTaskCreate     = "task_create"
	AuditActionTaskToggle     = "task_toggle"
)
