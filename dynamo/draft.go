package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/buildx-events/registration/wizard"
)

type draftDynamo struct {
	PK string
	SK string

	// Payload holds the draft's JSON wire form: {"step": n, "form": {...}}.
	Payload   string
	UpdatedAt time.Time
}

const draftEntityName = "DRAFT"

func draftPK(sessionID string) string {
	return fmt.Sprintf("%s#%s", draftEntityName, sessionID)
}

func draftKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: draftPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: draftEntityName},
	}
}

func (d *DB) SaveDraft(ctx context.Context, sessionID string, draft wizard.Draft) error {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	item, err := attributevalue.MarshalMap(draftDynamo{
		PK:        draftPK(sessionID),
		SK:        draftEntityName,
		Payload:   string(payload),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to translate draft to dynamo model: %w", err)
	}

	_, err = d.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save draft for session %q: %w", sessionID, err)
	}

	return nil
}

func (d *DB) GetDraft(ctx context.Context, sessionID string) (wizard.Draft, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       draftKey(sessionID),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return wizard.Draft{}, false, fmt.Errorf("GetDraft timed out")
		}
		return wizard.Draft{}, false, fmt.Errorf("failed to fetch draft for session %q: %w", sessionID, err)
	}

	if len(resp.Item) == 0 {
		return wizard.Draft{}, false, nil
	}

	var dynDraft draftDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &dynDraft)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal draft from dynamo: %s", err))
	}

	var draft wizard.Draft
	if err := json.Unmarshal([]byte(dynDraft.Payload), &draft); err != nil {
		// A corrupt draft seeds nothing; the wizard starts fresh.
		return wizard.Draft{}, false, nil
	}

	return draft, true, nil
}

func (d *DB) DeleteDraft(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	_, err := d.dynamoClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       draftKey(sessionID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete draft for session %q: %w", sessionID, err)
	}

	return nil
}

var _ wizard.DraftStore = &DraftSlot{}

// DraftSlot scopes the table's draft storage to one session so it satisfies
// wizard.DraftStore.
type DraftSlot struct {
	db        *DB
	sessionID string
}

func (d *DB) DraftSlot(sessionID string) *DraftSlot {
	return &DraftSlot{
		db:        d,
		sessionID: sessionID,
	}
}

func (s *DraftSlot) Save(ctx context.Context, draft wizard.Draft) error {
	return s.db.SaveDraft(ctx, s.sessionID, draft)
}

func (s *DraftSlot) Restore(ctx context.Context) (wizard.Draft, bool, error) {
	return s.db.GetDraft(ctx, s.sessionID)
}

func (s *DraftSlot) Clear(ctx context.Context) error {
	return s.db.DeleteDraft(ctx, s.sessionID)
}
