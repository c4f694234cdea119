// Package models defines the client-side records held by the session
// synchronizer and the cart store, and their persisted encodings.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/tradeclub/internal/common"
)

// Role is the principal's role as reported by the auth API.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is the session record of the signed-in principal.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
	Token  string `json:"token,omitempty"`
}

// ProfileUpdate is a partial update over the fields a profile edit may
// touch. Nil fields are left unchanged; identity and role are not editable.
type ProfileUpdate struct {
	Name   *string
	Email  *string
	Avatar *string
	Token  *string
}

func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Avatar == nil && p.Token == nil
}

// Apply returns u with the non-nil fields of p merged in.
func (p ProfileUpdate) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.Token != nil {
		u.Token = *p.Token
	}
	return u
}

func EncodeUser(u User) ([]byte, error) {
	return json.Marshal(u)
}

// DecodeUser parses a persisted session record. A nil or JSON-null record
// is a logged-out state and yields (nil, nil). Anything unparsable, or a
// record without an id, is reported as common.ErrMalformedRecord.
func DecodeUser(b []byte) (*User, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	var u User
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: session record without id", common.ErrMalformedRecord)
	}
	return &u, nil
}
