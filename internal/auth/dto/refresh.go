package dto

type RefreshInput struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	IPAddress    string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshResponse carries a new refresh token only when rotation is enabled.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

type LogoutInput struct {
	RefreshToken string `json:"refreshToken" validate:"required_without=AllSessions"`
	AllSessions  bool   `json:"allSessions"`
}
