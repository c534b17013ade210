package handlers

import (
	"time"

	"github.com/pribylovaa/books-auth/internal/models"
)

// Входные/выходные модели REST.

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest — Login принимает username или email.
type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type updateProfileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type tokenResponse struct {
	AccessToken      string     `json:"access_token"`
	TokenType        string     `json:"token_type"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshToken     string     `json:"refresh_token,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
}

func tokensFromModel(p *models.TokenPair) tokenResponse {
	out := tokenResponse{
		AccessToken:     p.AccessToken,
		TokenType:       "Bearer",
		AccessExpiresAt: p.AccessExpiresAt,
		RefreshToken:    p.RefreshToken,
	}
	if p.RefreshToken != "" {
		exp := p.RefreshExpiresAt
		out.RefreshExpiresAt = &exp
	}

	return out
}
