package domain

// Event пушится в открытые вебсокеты пользователя
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventBalance    = "balance"
	EventWithdrawal = "withdrawal"
)
