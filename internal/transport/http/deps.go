package http

import (
	"github.com/go-auth-api/internal/infrastructure/dynamo"
	"github.com/go-auth-api/internal/infrastructure/eth"
	"github.com/go-auth-api/internal/infrastructure/events"
	jwtinfra "github.com/go-auth-api/internal/infrastructure/jwt"
	"github.com/go-auth-api/internal/infrastructure/smtp"
	"github.com/go-auth-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	IdentityRepo *dynamo.IdentityRepo
	OtpRepo      *dynamo.OtpRepo
	Mailer       smtp.Mailer
	SMSSender    sns.SMSSender
	JWTProvider  *jwtinfra.Provider
	Recoverer    eth.Recoverer
	// Publisher is optional; a nil publisher disables event emission.
	Publisher events.Publisher
}
