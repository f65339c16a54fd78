package dto

type LoginInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type GoogleLoginInput struct {
	Code      string `json:"code" validate:"required"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type GoogleAuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

type LoginResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	TokenType    string        `json:"tokenType"`
	ExpiresIn    int           `json:"expiresIn"`
	Account      AccountOutput `json:"account"`
}
