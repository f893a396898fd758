package auth

import (
	"encoding/json"
	"time"
)

// Code is a caller-visible outcome code. The set is deliberately small:
// every credential failure collapses into CodeInvalidCredentials so the
// response never reveals whether the account exists.
type Code string

const (
	CodeInvalidCredentials  Code = "EU001"
	CodeSubscriptionExpired Code = "EU002"
	CodeSessionConflict     Code = "EU003"
	CodeRateLimited         Code = "EU005"
)

// Status is the outcome half of every operation result. On the wire it is
// the literal true on success and the code string otherwise, which is the
// shape the desktop client expects.
type Status struct {
	OK   bool
	Code Code
}

func statusOK() Status          { return Status{OK: true} }
func statusCode(c Code) Status  { return Status{Code: c} }
func (s Status) Is(c Code) bool { return !s.OK && s.Code == c }

func (s Status) MarshalJSON() ([]byte, error) {
	if s.OK {
		return []byte("true"), nil
	}
	return json.Marshal(string(s.Code))
}

func (s *Status) UnmarshalJSON(data []byte) error {
	if string(data) == "true" {
		*s = Status{OK: true}
		return nil
	}
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	*s = Status{Code: Code(code)}
	return nil
}

// LoginData is the public profile returned on successful login. It never
// carries the password hash.
type LoginData struct {
	UserID                string     `json:"user_id"`
	Username              string     `json:"username"`
	UserType              string     `json:"user_type"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at"`
	WorkCount             int        `json:"work_count"`
	WorkUsed              int        `json:"work_used"`
	LastLoginAt           *time.Time `json:"last_login_at"`
	IP                    string     `json:"ip"`
	Token                 string     `json:"token"`
}

type LoginResult struct {
	Status  Status     `json:"status"`
	Message string     `json:"message,omitempty"`
	Data    *LoginData `json:"data,omitempty"`
}

type CheckSessionResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type WorkAvailability struct {
	Success   bool `json:"success"`
	CanWork   bool `json:"can_work"`
	WorkCount int  `json:"work_count"`
	WorkUsed  int  `json:"work_used"`
	Remaining int  `json:"remaining"`
}

type UseWorkResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Remaining *int   `json:"remaining"`
	Used      *int   `json:"used"`
}
