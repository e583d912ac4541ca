package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/buildx-events/registration/capacity"
)

var _ capacity.Gate = &DB{}

type ledgerDynamo struct {
	PK string
	SK string

	CurrentRegistrations int
	MaxRegistrations     int
}

const ledgerEntityName = "LEDGER"

func ledgerPK(ledgerID string) string {
	return fmt.Sprintf("%s#%s", ledgerEntityName, ledgerID)
}

func ledgerKey(ledgerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: ledgerPK(ledgerID)},
		"SK": &types.AttributeValueMemberS{Value: ledgerPK(ledgerID)},
	}
}

// reserveSlotConditional admits the write when the ledger does not exist yet
// (first-writer bootstrap) or when capacity remains. DynamoDB evaluates it
// against the committed item, so a concurrent increment can never be missed.
func reserveSlotConditional() expression.ConditionBuilder {
	return expression.Name("PK").AttributeNotExists().
		Or(expression.Name("CurrentRegistrations").LessThan(expression.Name("MaxRegistrations")))
}

func reserveSlotUpdate(defaultMax int) expression.UpdateBuilder {
	return expression.
		Set(expression.Name("CurrentRegistrations"),
			expression.Plus(
				expression.Name("CurrentRegistrations").IfNotExists(expression.Value(0)),
				expression.Value(1))).
		Set(expression.Name("MaxRegistrations"),
			expression.Name("MaxRegistrations").IfNotExists(expression.Value(defaultMax)))
}

func (d *DB) ReserveSlot(ctx context.Context, ledgerID string) error {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	expr := exprMustBuild(expression.NewBuilder().
		WithCondition(reserveSlotConditional()).
		WithUpdate(reserveSlotUpdate(d.ledgerDefaultMax)))

	_, err := d.dynamoClient.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       ledgerKey(ledgerID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return capacity.NewFullError(ledgerID)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return capacity.NewTimeoutError("ReserveSlot timed out")
		}
		return capacity.NewFailedToWriteError("Failed UpdateItem call", err)
	}

	return nil
}

// ReleaseSlot is the compensating decrement. Releasing an absent or empty
// ledger is a no-op rather than an error, so the counter never goes negative.
func (d *DB) ReleaseSlot(ctx context.Context, ledgerID string) error {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	expr := exprMustBuild(expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists().
			And(expression.Name("CurrentRegistrations").GreaterThan(expression.Value(0)))).
		WithUpdate(expression.Set(expression.Name("CurrentRegistrations"),
			expression.Minus(expression.Name("CurrentRegistrations"), expression.Value(1)))))

	_, err := d.dynamoClient.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       ledgerKey(ledgerID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return capacity.NewTimeoutError("ReleaseSlot timed out")
		}
		return capacity.NewFailedToWriteError("Failed UpdateItem call", err)
	}

	return nil
}

func (d *DB) GetLedger(ctx context.Context, ledgerID string) (capacity.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       ledgerKey(ledgerID),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return capacity.Ledger{}, capacity.NewTimeoutError("GetLedger timed out")
		}
		return capacity.Ledger{}, capacity.NewFailedToFetchError(fmt.Sprintf("Failed to fetch ledger %q", ledgerID), err)
	}

	if len(resp.Item) == 0 {
		// Not bootstrapped yet: nothing consumed, default cap.
		return capacity.Ledger{Current: 0, Max: d.ledgerDefaultMax}, nil
	}

	var dynLedger ledgerDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &dynLedger)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal ledger from dynamo: %s", err))
	}

	return capacity.Ledger{
		Current: dynLedger.CurrentRegistrations,
		Max:     dynLedger.MaxRegistrations,
	}, nil
}
