package dynamo

import (
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Page cursors are a query's resume key, JSON-marshalled and base64-encoded
// so callers can hand them back as opaque tokens.

func encodeCursor(resumeKey map[string]types.AttributeValue) (string, error) {
	raw, err := attributevalue.MarshalMapJSON(resumeKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal resume key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to base64-decode cursor: %w", err)
	}

	resumeKey, err := attributevalue.UnmarshalMapJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal resume key: %w", err)
	}

	return resumeKey, nil
}

// resumeKeyForItem rebuilds a LastEvaluatedKey-shaped key from an arbitrary
// item, for when the page boundary is not the last item the query returned.
func resumeKeyForItem(keyShape map[string]types.AttributeValue, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	key := make(map[string]types.AttributeValue, len(keyShape))
	for name := range keyShape {
		key[name] = item[name]
	}
	return key
}
