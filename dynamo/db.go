// Package dynamo persists registrations, the capacity ledger, drafts and the
// event controls in a single DynamoDB table keyed by PK/SK, using conditional
// writes for every cross-client invariant.
package dynamo

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/buildx-events/registration/capacity"
)

const (
	gsi1 = "GSI1"

	// Bound on small keyed reads/writes so a hung call surfaces as a
	// timeout instead of blocking the caller.
	remoteCallTimeout = time.Second
)

type DB struct {
	dynamoClient     *dynamodb.Client
	tableName        string
	ledgerDefaultMax int
}

func NewDB(dynamoClient *dynamodb.Client, tableName string, ledgerDefaultMax int) *DB {
	if ledgerDefaultMax <= 0 {
		ledgerDefaultMax = capacity.DefaultMax
	}

	return &DB{
		dynamoClient:     dynamoClient,
		tableName:        tableName,
		ledgerDefaultMax: ledgerDefaultMax,
	}
}

func exprMustBuild(builder expression.Builder) expression.Expression {
	expr, err := builder.Build()
	if err != nil {
		panic("failed to build dynamo expression")
	}

	return expr
}

func isConditionalCheckFailed(reason types.CancellationReason) bool {
	return reason.Code != nil && *reason.Code == "ConditionalCheckFailed"
}
