package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-api/internal/domain"
)

// IdentityRepo provides typed DynamoDB operations for the identities table.
type IdentityRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewIdentityRepo(client *dynamodb.Client, tableName string) *IdentityRepo {
	return &IdentityRepo{client: client, tableName: tableName}
}

// Put creates an identity. The conditional write refuses to overwrite an
// existing record, so a lost race surfaces as a conflict instead of a
// silent replacement.
func (r *IdentityRepo) Put(ctx context.Context, ident *domain.Identity) error {
	item, err := attributevalue.MarshalMap(ident)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return fmt.Errorf("identity already exists: %w", domain.ErrConflict)
		}
		return storeErr("put identity", err)
	}
	return nil
}

func (r *IdentityRepo) Get(ctx context.Context, userID string) (*domain.Identity, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, storeErr("get identity", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("identity not found: %w", domain.ErrNotFound)
	}
	var ident domain.Identity
	if err := attributevalue.UnmarshalMap(out.Item, &ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

// GetByEmail looks up an identity via the email GSI.
func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("email-index"),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": "email"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, storeErr("query identity by email", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("identity not found: %w", domain.ErrNotFound)
	}
	var ident domain.Identity
	if err := attributevalue.UnmarshalMap(out.Items[0], &ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

func (r *IdentityRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		return storeErr("update identity", err)
	}
	return nil
}

// UpdateRefreshTokenHash records a digest of the most recently issued refresh
// token. Audit only — token verification never reads it back.
func (r *IdentityRepo) UpdateRefreshTokenHash(ctx context.Context, userID, hash string) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldRefreshTokenHash: hash})
}

func (r *IdentityRepo) SoftDelete(ctx context.Context, userID string) error {
	return r.Update(ctx, userID, map[string]interface{}{
		fieldEnable:    false,
		fieldDeletedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
