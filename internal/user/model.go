package user

import (
	"strings"
	"time"
	"unicode"
)

type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Website  string `json:"website"`
}

// CreateUserInput is the create form. Every field is required.
type CreateUserInput struct {
	Name     string `json:"name" form:"name" validate:"ufname"`
	Username string `json:"username" form:"username" validate:"filled"`
	Email    string `json:"email" form:"email" validate:"required,ufemail"`
	Phone    string `json:"phone" form:"phone" validate:"ufphone"`
	Website  string `json:"website" form:"website" validate:"filled,ufwebsite"`
}

// UpdateUserInput is the edit form. The username is read-only and
// the website may be cleared.
type UpdateUserInput struct {
	Name    string `json:"name" form:"name" validate:"ufname"`
	Email   string `json:"email" form:"email" validate:"required,ufemail"`
	Phone   string `json:"phone" form:"phone" validate:"ufphone"`
	Website string `json:"website" form:"website" validate:"omitempty,ufwebsite"`
}

func (in *CreateUserInput) Normalize() {
	in.Phone = NormalizePhone(in.Phone)
}

func (in *UpdateUserInput) Normalize() {
	in.Phone = NormalizePhone(in.Phone)
}

func (in CreateUserInput) ToUser() User {
	return User{
		Name:     in.Name,
		Username: in.Username,
		Email:    in.Email,
		Phone:    in.Phone,
		Website:  in.Website,
	}
}

// Apply copies the editable fields onto u.
func (in UpdateUserInput) Apply(u User) User {
	u.Name = in.Name
	u.Email = in.Email
	u.Phone = in.Phone
	u.Website = in.Website
	return u
}

// InputFromUser pre-fills the edit form.
func InputFromUser(u User) UpdateUserInput {
	return UpdateUserInput{
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.Phone,
		Website: u.Website,
	}
}

// NormalizePhone drops every whitespace rune.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
}

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event is published after every successful mutation.
type Event struct {
	EventID    string    `json:"event_id"`
	Action     Action    `json:"action"`
	SessionID  string    `json:"session_id"`
	UserID     int       `json:"user_id"`
	UserName   string    `json:"user_name"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoutingKey is the topic the event is published under.
func (e Event) RoutingKey() string {
	return "user." + string(e.Action)
}
