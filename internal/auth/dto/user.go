package dto

import (
	"time"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
)

type AccountOutput struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func NewAccountOutput(a *domain.Account) AccountOutput {
	return AccountOutput{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Role:        a.Role.String(),
		Active:      a.Active,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type MeOutput struct {
	AccountOutput
	Permissions []string `json:"permissions"`
}

type CreateAccountInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,bcryptmax"`
	Role     string `json:"role" validate:"required,oneof=Admin HR Viewer"`
}

type UpdateRoleInput struct {
	Role string `json:"role" validate:"required,oneof=Admin HR Viewer"`
}

type SessionOutput struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewSessionOutput(rt domain.RefreshToken) SessionOutput {
	return SessionOutput{
		ID:        rt.ID,
		IPAddress: rt.IPAddress,
		UserAgent: rt.UserAgent,
		IssuedAt:  rt.IssuedAt,
		ExpiresAt: rt.ExpiresAt,
	}
}
