package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/buildx-events/registration/registration"
)

type controlsDynamo struct {
	PK string
	SK string

	SubmissionOpen     bool
	LeaderboardVisible bool
}

const controlsEntityName = "CONTROLS#main"

func controlsKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: controlsEntityName},
		"SK": &types.AttributeValueMemberS{Value: controlsEntityName},
	}
}

// GetControls returns the admin toggles; an absent document means everything
// is switched off.
func (d *DB) GetControls(ctx context.Context) (registration.Controls, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       controlsKey(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.Controls{}, registration.NewTimeoutError("GetControls timed out")
		}
		return registration.Controls{}, registration.NewFailedToFetchError("Failed to fetch event controls", err)
	}

	if len(resp.Item) == 0 {
		return registration.Controls{}, nil
	}

	var dynControls controlsDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &dynControls)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal controls from dynamo: %s", err))
	}

	return registration.Controls{
		SubmissionOpen:     dynControls.SubmissionOpen,
		LeaderboardVisible: dynControls.LeaderboardVisible,
	}, nil
}

// SetControls overwrites the toggles (administrative use).
func (d *DB) SetControls(ctx context.Context, controls registration.Controls) error {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	item, err := attributevalue.MarshalMap(controlsDynamo{
		PK:                 controlsEntityName,
		SK:                 controlsEntityName,
		SubmissionOpen:     controls.SubmissionOpen,
		LeaderboardVisible: controls.LeaderboardVisible,
	})
	if err != nil {
		return registration.NewFailedToTranslateToDBModelError("Failed to translate controls to dynamo model", err)
	}

	_, err = d.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return registration.NewFailedToWriteError("Failed to write event controls", err)
	}

	return nil
}
