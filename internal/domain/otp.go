package domain

// OtpRecord is a short-lived one-time passcode.
// PK: email, SK: code — multiple outstanding codes per email coexist and
// each is independently consumable exactly once.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type OtpRecord struct {
	Email     string `json:"email" dynamodbav:"email"`
	Code      string `json:"code" dynamodbav:"code"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
