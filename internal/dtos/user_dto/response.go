package user_dto

import "time"

type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     *string   `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
