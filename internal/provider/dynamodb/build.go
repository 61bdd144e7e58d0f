package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/prebuild/internal/lifecycle"
	"github.com/dwsmith1983/prebuild/internal/provider"
	"github.com/dwsmith1983/prebuild/pkg/types"
)

// buildTTL keeps in-flight builds a day longer than finished ones.
func (p *DynamoDBProvider) buildTTL(status types.BuildStatus) time.Duration {
	if lifecycle.IsTerminal(status) {
		return p.retentionTTL
	}
	return p.retentionTTL + 24*time.Hour
}

// PutBuild stores a build using dual-write: a truth item keyed by build ID
// and a copy in the job's partition sorted by queue time.
func (p *DynamoDBProvider) PutBuild(ctx context.Context, rec types.BuildRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := fmt.Sprintf("%d", ttlEpoch(p.buildTTL(rec.Status)))

	_, err = p.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbtypes.TransactWriteItem{
			{
				Put: &ddbtypes.Put{
					TableName: &p.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						"PK":   &ddbtypes.AttributeValueMemberS{Value: buildPK(rec.BuildID)},
						"SK":   &ddbtypes.AttributeValueMemberS{Value: buildTruthSK(rec.BuildID)},
						"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
						"ttl":  &ddbtypes.AttributeValueMemberN{Value: ttl},
					},
				},
			},
			{
				Put: &ddbtypes.Put{
					TableName: &p.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						"PK":   &ddbtypes.AttributeValueMemberS{Value: jobPK(rec.JobName)},
						"SK":   &ddbtypes.AttributeValueMemberS{Value: buildListSK(rec.QueuedAt, rec.BuildID)},
						"data": &ddbtypes.AttributeValueMemberS{Value: string(data)},
						"ttl":  &ddbtypes.AttributeValueMemberN{Value: ttl},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("writing build %q: %w", rec.BuildID, err)
	}
	return nil
}

// GetBuild reads the truth item (strongly consistent).
func (p *DynamoDBProvider) GetBuild(ctx context.Context, buildID string) (*types.BuildRecord, error) {
	out, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &p.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: buildPK(buildID)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: buildTruthSK(buildID)},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil || isExpired(attributeTTL(out.Item)) {
		return nil, fmt.Errorf("build %q: %w", buildID, provider.ErrNotFound)
	}

	data, err := attributeStr(out.Item, "data")
	if err != nil {
		return nil, err
	}
	var rec types.BuildRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decoding build %q: %w", buildID, err)
	}
	return &rec, nil
}

// ListBuilds returns recent builds for a job, newest first.
func (p *DynamoDBProvider) ListBuilds(ctx context.Context, jobName string, limit int) ([]types.BuildRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	out, err := p.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &p.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: jobPK(jobName)},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixBuild},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, err
	}

	builds := make([]types.BuildRecord, 0, len(out.Items))
	for _, item := range out.Items {
		if isExpired(attributeTTL(item)) {
			continue
		}
		data, err := attributeStr(item, "data")
		if err != nil {
			p.logger.Warn("skipping corrupt build data", "error", err)
			continue
		}
		var rec types.BuildRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			p.logger.Warn("skipping corrupt build data", "error", err)
			continue
		}
		builds = append(builds, rec)
	}
	return builds, nil
}
