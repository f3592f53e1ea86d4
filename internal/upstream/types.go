package upstream

// Next actions returned by the auth endpoints
const (
	ActionIssueTokens = "issue_tokens"
	ActionVerifyEmail = "verify_email"
	ActionVerifyPhone = "verify_phone"
	ActionDoLogin     = "do_login"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DisplayName       string `json:"display_name,omitempty"`
	Phone             string `json:"phone,omitempty"`
	PreferredCurrency string `json:"preferred_currency,omitempty"`
}

// User is the user object embedded in token responses
type User struct {
	ID                string   `json:"id"`
	Email             string   `json:"email"`
	DisplayName       string   `json:"display_name"`
	Phone             string   `json:"phone"`
	Role              string   `json:"role"`
	Roles             []string `json:"roles"`
	Permissions       []string `json:"permissions"`
	EmailVerified     bool     `json:"email_verified"`
	PhoneVerified     bool     `json:"phone_verified"`
	PreferredCurrency string   `json:"preferred_currency"`
}

// TokenSession carries issued tokens
type TokenSession struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	User             User   `json:"user"`
}

// AuthResponse is the next-action envelope used by login, register, refresh
// and verify-email.
type AuthResponse struct {
	Action  string        `json:"action"`
	Email   string        `json:"email"`
	Phone   string        `json:"phone"`
	Message string        `json:"message,omitempty"`
	Session *TokenSession `json:"session,omitempty"`
}

// TokensIssued reports whether the response carries usable tokens
func (r *AuthResponse) TokensIssued() bool {
	return r.Action == ActionIssueTokens && r.Session != nil && r.Session.AccessToken != ""
}

// GroupSummary is a group as listed for the current user
type GroupSummary struct {
	ID          string `json:"group_id"`
	Name        string `json:"name"`
	Currency    string `json:"base_currency"`
	GroupType   string `json:"group_type"`
	Role        string `json:"role"`
	UnreadCount int    `json:"unread_count"`
	AvatarURL   string `json:"avatar_url"`
}

// GroupList is the group listing
type GroupList struct {
	Items []GroupSummary `json:"items"`
}

// Expense is a single expense as listed by the backend
type Expense struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"group_id"`
	PayerID     string  `json:"payer_id"`
	PayerName   string  `json:"payer_name"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	ExpenseDate string  `json:"expense_date"`
}

// ExpenseList is the paginated expense listing
type ExpenseList struct {
	Items      []Expense `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
}

// Settlement is a single settlement as listed by the backend
type Settlement struct {
	ID           string  `json:"id"`
	GroupID      string  `json:"group_id"`
	FromUserID   string  `json:"from_user_id"`
	FromUserName string  `json:"from_user_name"`
	ToUserID     string  `json:"to_user_id"`
	ToUserName   string  `json:"to_user_name"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Method       string  `json:"method"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
}

// SettlementList is the paginated settlement listing
type SettlementList struct {
	Items      []Settlement `json:"items"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
}

// GroupInvite is a pending group invitation addressed to the user
type GroupInvite struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id"`
	GroupName   string `json:"group_name"`
	InviterID   string `json:"inviter_id"`
	InviterName string `json:"inviter_name"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
}

// FriendInvite is a pending friend invitation sent or received by the user
type FriendInvite struct {
	ID        string `json:"id"`
	Via       string `json:"via"`
	Value     string `json:"value"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// Currency is one supported currency
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Document is a loosely typed payload rendered as-is (dashboard stats,
// group detail, admin dashboard)
type Document map[string]any
