package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/prebuild/pkg/types"
)

// revisionItem is stored as native attributes rather than a JSON blob so the
// last-seen revision is readable in the console.
type revisionItem struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	JobName   string    `dynamodbav:"jobName"`
	Revision  string    `dynamodbav:"revision"`
	BuildID   string    `dynamodbav:"buildId,omitempty"`
	CheckedAt time.Time `dynamodbav:"checkedAt"`
}

// PutRevision records the SCM revision a job was last scheduled to build.
// Revisions never expire: losing one would make the next poll report changes.
func (p *DynamoDBProvider) PutRevision(ctx context.Context, rev types.Revision) error {
	item, err := attributevalue.MarshalMap(revisionItem{
		PK:        jobPK(rev.JobName),
		SK:        revisionSK(),
		JobName:   rev.JobName,
		Revision:  rev.Revision,
		BuildID:   rev.BuildID,
		CheckedAt: rev.CheckedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling revision: %w", err)
	}
	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &p.tableName,
		Item:      item,
	})
	return err
}

// GetRevision returns the last recorded revision, or nil if none.
func (p *DynamoDBProvider) GetRevision(ctx context.Context, jobName string) (*types.Revision, error) {
	out, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &p.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: jobPK(jobName)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: revisionSK()},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}

	var item revisionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling revision for %q: %w", jobName, err)
	}
	return &types.Revision{
		JobName:   item.JobName,
		Revision:  item.Revision,
		BuildID:   item.BuildID,
		CheckedAt: item.CheckedAt,
	}, nil
}
