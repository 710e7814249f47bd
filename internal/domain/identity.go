package domain

import "time"

type Identity struct {
	UserID           string     `json:"id" dynamodbav:"user_id"`
	Email            string     `json:"email" dynamodbav:"email"`
	Phone            *string    `json:"phone,omitempty" dynamodbav:"phone"`
	PasswordHash     string     `json:"-" dynamodbav:"password_hash"`
	WalletAddress    *string    `json:"wallet_address,omitempty" dynamodbav:"wallet_address"`
	// WalletNonce is public so a client can build the wallet-link
	// challenge; it rotates after every recoverable link attempt.
	WalletNonce      string     `json:"wallet_nonce" dynamodbav:"wallet_nonce"`
	RefreshTokenHash string     `json:"-" dynamodbav:"refresh_token_hash"`
	Enable           bool       `json:"enable" dynamodbav:"enable"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt        time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Phone    *string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
