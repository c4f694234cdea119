package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/tradeclub/internal/client/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobileNumber,omitempty"`
	Password     string `json:"password"`
}

// ID is a user id the API sends either as a JSON number or a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
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
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	ID           ID     `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	Role         string `json:"role"`
	MobileNumber string `json:"mobileNumber"`
	Token        string `json:"token"`
}

// User maps the response onto the session record.
func (r AuthResponse) User() models.User {
	role := models.Role(r.Role)
	if role == "" {
		role = models.RoleMember
	}
	return models.User{
		ID:    string(r.ID),
		Email: r.Email,
		Name:  r.FullName,
		Role:  role,
		Token: r.Token,
	}
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
