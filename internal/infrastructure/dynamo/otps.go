package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-api/internal/domain"
)

// OtpRepo manages one-time passcodes.
// PK: email, SK: code.
type OtpRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOtpRepo(client *dynamodb.Client, tableName string) *OtpRepo {
	return &OtpRepo{client: client, tableName: tableName}
}

func (r *OtpRepo) Put(ctx context.Context, rec *domain.OtpRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return storeErr("put otp record", err)
	}
	return nil
}

// Consume atomically removes the (email, code) record and returns it.
// The conditional delete guarantees that of two concurrent calls for the
// same code exactly one receives the record; the other gets ErrNotFound.
func (r *OtpRepo) Consume(ctx context.Context, email, code string) (*domain.OtpRecord, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("email", email, "code", code),
		ConditionExpression: aws.String("attribute_exists(email)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
		}
		return nil, storeErr("consume otp record", err)
	}
	var rec domain.OtpRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
