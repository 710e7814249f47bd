package dynamo

// DynamoDB attribute names used in update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable           = "enable"
	fieldDeletedAt        = "deleted_at"
	fieldRefreshTokenHash = "refresh_token_hash"
)
