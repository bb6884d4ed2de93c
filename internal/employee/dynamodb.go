// Package employee provides employee record stores for LobbyPipe.
//
// This file implements the DynamoDB-backed store used in production.
package employee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/openlobby/LobbyPipe/internal/models"
)

const (
	emailIndexName = "email-index"
	nameIndexName  = "name-index"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoDBStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDBStore reads employee records from a DynamoDB table keyed by
// employee_id, with a global secondary index on email.
type DynamoDBStore struct {
	api       dynamodbAPI
	tableName string
}

// NewDynamoDBStore creates a new DynamoDB-backed employee store.
func NewDynamoDBStore(api dynamodbAPI, tableName string) (*DynamoDBStore, error) {
	if api == nil {
		return nil, errors.New("employee: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("employee: table name must not be empty")
	}
	return &DynamoDBStore{api: api, tableName: tableName}, nil
}

// GetByID returns the record for an employee ID.
func (s *DynamoDBStore) GetByID(ctx context.Context, id string) (*models.EmployeeRecord, error) {
	normalized := NormalizeID(id)
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"employee_id": &types.AttributeValueMemberS{Value: normalized},
		},
	})
	if err != nil {
		slog.Error("DynamoDBStore GetByID failed", "error", err, "employee_id", normalized)
		return nil, fmt.Errorf("employee: GetByID %s: %w", normalized, err)
	}
	if out.Item == nil {
		return nil, models.ErrEmployeeNotFound
	}
	return itemToRecord(out.Item)
}

// GetByEmail returns the record for an email address via the email index.
func (s *DynamoDBStore) GetByEmail(ctx context.Context, email string) (*models.EmployeeRecord, error) {
	canonical := strings.ToLower(strings.TrimSpace(email))
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(emailIndexName),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: canonical},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		slog.Error("DynamoDBStore GetByEmail failed", "error", err)
		return nil, fmt.Errorf("employee: GetByEmail: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, models.ErrEmployeeNotFound
	}
	return itemToRecord(out.Items[0])
}

// GetByName returns the record for a spoken full name via the name index.
// Names are stored lowercased in the index attribute.
func (s *DynamoDBStore) GetByName(ctx context.Context, name string) (*models.EmployeeRecord, error) {
	canonical := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(nameIndexName),
		KeyConditionExpression: aws.String("name_lower = :name"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name": &types.AttributeValueMemberS{Value: canonical},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		slog.Error("DynamoDBStore GetByName failed", "error", err)
		return nil, fmt.Errorf("employee: GetByName: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, models.ErrEmployeeNotFound
	}
	return itemToRecord(out.Items[0])
}

// itemToRecord converts a DynamoDB item into an EmployeeRecord.
func itemToRecord(item map[string]types.AttributeValue) (*models.EmployeeRecord, error) {
	rec := &models.EmployeeRecord{}
	if v, ok := item["employee_id"].(*types.AttributeValueMemberS); ok {
		rec.ID = v.Value
	}
	if v, ok := item["name"].(*types.AttributeValueMemberS); ok {
		rec.Name = v.Value
	}
	if v, ok := item["email"].(*types.AttributeValueMemberS); ok {
		rec.Email = v.Value
	}
	if v, ok := item["phone"].(*types.AttributeValueMemberS); ok {
		rec.Phone = v.Value
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("employee: item missing employee_id attribute")
	}
	return rec, nil
}
