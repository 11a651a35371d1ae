package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an opaque backend identifier. The backend may send it as a JSON
// number or string; it is always handled as a string on the client.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tempSubjectResponse struct {
	TempUserID ID `json:"temp_user_id"`
}

type verifyOTPRequest struct {
	TempUserID string `json:"temp_user_id"`
	OTP        string `json:"otp"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the identity returned by POST /auth/login.
type LoginResponse struct {
	ID          ID     `json:"id"`
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	TempUserID  string `json:"temp_user_id"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// UpdateUserRequest carries only the fields being changed.
type UpdateUserRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// User is an account as listed in the admin view.
type User struct {
	ID           ID            `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	Role         string        `json:"role"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// Transaction is a single income or expense record. Date is YYYY-MM-DD.
type Transaction struct {
	ID          ID      `json:"id"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	IsIncome    bool    `json:"is_income"`
	Date        string  `json:"date"`
}

// TransactionInput is the writable part of a Transaction.
type TransactionInput struct {
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	IsIncome    bool    `json:"is_income"`
	Date        string  `json:"date"`
}
