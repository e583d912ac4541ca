package dynamo

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/buildx-events/registration/registration"
	"github.com/buildx-events/registration/slices"
	"github.com/buildx-events/registration/wizard"
)

var _ registration.Repository = &DB{}

type registrationDynamo struct {
	PK     string
	SK     string
	GSI1PK string
	GSI1SK string

	ID             uuid.UUID
	Name           string
	Email          string
	Phone          string
	TeamName       string
	TeamSize       int
	Members        []wizard.Member
	Screenshot     string
	PaymentStatus  string
	PriceAmount    int64
	PriceCurrency  string
	LoginPassword  string
	Score          int
	ProjectTagline string
	Submission     *submissionDynamo
	CreatedAt      time.Time
}

type submissionDynamo struct {
	RepoURL     string
	DemoURL     string
	SubmittedAt time.Time
}

const registrationEntityName = "REGISTRATION"

// The leader's email is the primary key, which is what makes duplicate
// registration impossible at the storage layer rather than just in the
// advisory pre-check.
func registrationPK(email string) string {
	return fmt.Sprintf("%s#%s", registrationEntityName, email)
}

func registrationSK(email string) string {
	return registrationPK(email)
}

func registrationToDynamo(rec registration.Record) registrationDynamo {
	dyn := registrationDynamo{
		PK:             registrationPK(rec.Email),
		SK:             registrationSK(rec.Email),
		GSI1PK:         registrationEntityName,
		GSI1SK:         registrationSK(rec.Email),
		ID:             rec.ID,
		Name:           rec.Name,
		Email:          rec.Email,
		Phone:          rec.Phone,
		TeamName:       rec.TeamName,
		TeamSize:       rec.TeamSize,
		Members:        rec.Members,
		Screenshot:     rec.Screenshot,
		PaymentStatus:  string(rec.PaymentStatus),
		LoginPassword:  rec.LoginPassword,
		Score:          rec.Score,
		ProjectTagline: rec.ProjectTagline,
		CreatedAt:      rec.CreatedAt,
	}

	if rec.PricePaid != nil {
		dyn.PriceAmount = rec.PricePaid.Amount()
		dyn.PriceCurrency = rec.PricePaid.Currency().Code
	}
	if rec.Submission != nil {
		dyn.Submission = &submissionDynamo{
			RepoURL:     rec.Submission.RepoURL,
			DemoURL:     rec.Submission.DemoURL,
			SubmittedAt: rec.Submission.SubmittedAt,
		}
	}

	return dyn
}

func dynamoToRegistration(dyn registrationDynamo) registration.Record {
	rec := registration.Record{
		ID:             dyn.ID,
		Name:           dyn.Name,
		Email:          dyn.Email,
		Phone:          dyn.Phone,
		TeamName:       dyn.TeamName,
		TeamSize:       dyn.TeamSize,
		Members:        dyn.Members,
		Screenshot:     dyn.Screenshot,
		PaymentStatus:  registration.PaymentStatus(dyn.PaymentStatus),
		LoginPassword:  dyn.LoginPassword,
		Score:          dyn.Score,
		ProjectTagline: dyn.ProjectTagline,
		CreatedAt:      dyn.CreatedAt,
	}

	if dyn.PriceCurrency != "" {
		rec.PricePaid = money.New(dyn.PriceAmount, dyn.PriceCurrency)
	}
	if dyn.Submission != nil {
		rec.Submission = &registration.Submission{
			RepoURL:     dyn.Submission.RepoURL,
			DemoURL:     dyn.Submission.DemoURL,
			SubmittedAt: dyn.Submission.SubmittedAt,
		}
	}

	return rec
}

// CreateRegistration debits one ledger slot and writes the record in a single
// TransactWriteItems call. DynamoDB serializes conflicting transactions on
// the ledger item, so the capacity check can never act on a stale read, and
// a failed record write rolls the debit back with it.
func (d *DB) CreateRegistration(ctx context.Context, rec registration.Record, ledgerID string) error {
	dynamoReg := registrationToDynamo(rec)

	regItem, err := attributevalue.MarshalMap(dynamoReg)
	if err != nil {
		return registration.NewFailedToTranslateToDBModelError("Failed to translate registration to dynamo model", err)
	}
	regExpr := exprMustBuild(expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()))

	ledgerExpr := exprMustBuild(expression.NewBuilder().
		WithCondition(reserveSlotConditional()).
		WithUpdate(reserveSlotUpdate(d.ledgerDefaultMax)))

	_, err = d.dynamoClient.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:                 aws.String(d.tableName),
					Key:                       ledgerKey(ledgerID),
					UpdateExpression:          ledgerExpr.Update(),
					ConditionExpression:       ledgerExpr.Condition(),
					ExpressionAttributeNames:  ledgerExpr.Names(),
					ExpressionAttributeValues: ledgerExpr.Values(),
				},
			},
			{
				Put: &types.Put{
					TableName:                aws.String(d.tableName),
					Item:                     regItem,
					ConditionExpression:      regExpr.Condition(),
					ExpressionAttributeNames: regExpr.Names(),
				},
			},
		},
	})
	if err != nil {
		var transactionFailedErr *types.TransactionCanceledException
		if errors.As(err, &transactionFailedErr) {
			reasons := transactionFailedErr.CancellationReasons
			if len(reasons) == 2 {
				if isConditionalCheckFailed(reasons[1]) {
					return registration.NewRegistrationAlreadyExistsError(fmt.Sprintf("Registration already exists for email %q", rec.Email), err)
				}
				if isConditionalCheckFailed(reasons[0]) {
					return registration.NewCapacityExceededError(fmt.Sprintf("Ledger %q is full", ledgerID), err)
				}
			}
			return registration.NewFailedToWriteError("Registration transaction canceled", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.NewTimeoutError("CreateRegistration timed out")
		}
		return registration.NewFailedToWriteError("Failed TransactWriteItems call", err)
	}

	return nil
}

func (d *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: registrationPK(email)},
			"SK": &types.AttributeValueMemberS{Value: registrationSK(email)},
		},
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, registration.NewTimeoutError("EmailExists timed out")
		}
		return false, registration.NewFailedToFetchError(fmt.Sprintf("Failed to check for registration with email %q", email), err)
	}

	return len(resp.Item) > 0, nil
}

func (d *DB) GetRegistrationByEmail(ctx context.Context, email string) (registration.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: registrationPK(email)},
			"SK": &types.AttributeValueMemberS{Value: registrationSK(email)},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.Record{}, registration.NewTimeoutError("GetRegistrationByEmail timed out")
		}
		return registration.Record{}, registration.NewFailedToFetchError(fmt.Sprintf("Failed to fetch registration with email %q", email), err)
	}

	if len(resp.Item) == 0 {
		return registration.Record{}, registration.NewRegistrationDoesNotExistError(fmt.Sprintf("Registration with email %q not found", email), nil)
	}

	var dynReg registrationDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &dynReg)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal registration from dynamo: %s", err))
	}

	return dynamoToRegistration(dynReg), nil
}

func (d *DB) GetRegistrationByLogin(ctx context.Context, email string, password string) (registration.Record, error) {
	rec, err := d.GetRegistrationByEmail(ctx, email)
	if err != nil {
		var regErr *registration.Error
		if errors.As(err, &regErr) && regErr.Reason == registration.REASON_REGISTRATION_DOES_NOT_EXIST {
			return registration.Record{}, registration.NewInvalidCredentialsError()
		}
		return registration.Record{}, err
	}

	if rec.LoginPassword == "" || subtle.ConstantTimeCompare([]byte(rec.LoginPassword), []byte(password)) != 1 {
		return registration.Record{}, registration.NewInvalidCredentialsError()
	}

	return rec, nil
}

func (d *DB) ListRegistrations(ctx context.Context, limit int32, cursor *string) (registration.ListRegistrationsResponse, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(registrationEntityName))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build dynamo key expression: %s", err))
	}

	var startKey map[string]types.AttributeValue
	if cursor != nil {
		startKey, err = decodeCursor(*cursor)
		if err != nil {
			return registration.ListRegistrationsResponse{}, registration.NewInvalidCursorError("Invalid cursor", err)
		}
	}

	result, err := d.dynamoClient.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(gsi1),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		// Fetch 1 more than limit to check if there is another page or not
		Limit:             aws.Int32(limit + 1),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		return registration.ListRegistrationsResponse{}, registration.NewFailedToFetchError("Failed to fetch registrations from dynamo", err)
	}

	var dynamoItems []registrationDynamo
	err = attributevalue.UnmarshalListOfMaps(result.Items, &dynamoItems)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal dynamo registrations: %s", err))
	}

	hasNextPage := len(dynamoItems) > int(limit)

	var newCursor *string
	if hasNextPage && len(result.LastEvaluatedKey) > 0 {
		// Can't use LastEvaluatedKey directly because an extra item was
		// fetched to detect the next page; resume from the last item the
		// caller actually gets.
		lastItemGivenToUser := result.Items[len(result.Items)-2]
		c, err := encodeCursor(resumeKeyForItem(result.LastEvaluatedKey, lastItemGivenToUser))
		if err != nil {
			panic(fmt.Sprintf("failed to make cursor from resume key: %s", err))
		}
		newCursor = &c
	}

	return registration.ListRegistrationsResponse{
		Data: slices.Map(dynamoItems, func(v registrationDynamo) registration.Record {
			return dynamoToRegistration(v)
		})[:min(int(limit), len(dynamoItems))],
		Cursor:      newCursor,
		HasNextPage: hasNextPage,
	}, nil
}

func (d *DB) UpdateSubmission(ctx context.Context, email string, submission registration.Submission) error {
	update := expression.Set(expression.Name("Submission"), expression.Value(submissionDynamo{
		RepoURL:     submission.RepoURL,
		DemoURL:     submission.DemoURL,
		SubmittedAt: submission.SubmittedAt,
	}))

	return d.updateRegistrationField(ctx, email, update, "UpdateSubmission")
}

func (d *DB) UpdateLoginPassword(ctx context.Context, email string, password string) error {
	update := expression.Set(expression.Name("LoginPassword"), expression.Value(password))

	return d.updateRegistrationField(ctx, email, update, "UpdateLoginPassword")
}

func (d *DB) updateRegistrationField(ctx context.Context, email string, update expression.UpdateBuilder, op string) error {
	ctx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	expr := exprMustBuild(expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists()).
		WithUpdate(update))

	_, err := d.dynamoClient.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: registrationPK(email)},
			"SK": &types.AttributeValueMemberS{Value: registrationSK(email)},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return registration.NewRegistrationDoesNotExistError(fmt.Sprintf("Registration with email %q not found", email), err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.NewTimeoutError(op + " timed out")
		}
		return registration.NewFailedToWriteError("Failed UpdateItem call", err)
	}

	return nil
}
