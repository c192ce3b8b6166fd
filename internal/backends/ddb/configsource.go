package ddb

import (
	"context"
	"kvguard/internal/types"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ConfigSource stores entries in a single table:
// PK = CONFIG#<environment>#<namespace>, SK = NAME#<name>.
type ConfigSource struct {
	table string
	cli   *dynamodb.Client
}

type configItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	types.ConfigEntry
}

// NewConfigSource creates the table if it does not exist yet.
func NewConfigSource(table string, cli *dynamodb.Client) (*ConfigSource, error) {
	if err := createTableIfNotExists(cli, table); err != nil {
		return nil, types.Err(types.ErrConfiguration, err, "create table %s", table)
	}
	return &ConfigSource{table: table, cli: cli}, nil
}

func (s *ConfigSource) GetConfig(ctx context.Context, environment, namespace, name string) (types.ConfigEntry, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkConfig(environment, namespace)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skName(name)},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.ConfigEntry{}, types.Err(types.ErrConfigSource, err, "")
	}
	if out.Item == nil {
		return types.ConfigEntry{}, types.ErrNotFound
	}
	var item configItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return types.ConfigEntry{}, types.Err(types.ErrConfigSource, err, "")
	}
	return item.ConfigEntry, nil
}

func (s *ConfigSource) PutConfig(ctx context.Context, entry types.ConfigEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(configItem{
		PK:          pkConfig(entry.Environment, entry.Namespace),
		SK:          skName(entry.Name),
		ConfigEntry: entry,
	})
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	if err != nil {
		return types.Err(types.ErrConfigSource, err, "")
	}
	return nil
}

func (s *ConfigSource) ListConfig(ctx context.Context, environment, namespace string) ([]types.ConfigEntry, error) {
	var entries []types.ConfigEntry
	p := dynamodb.NewQueryPaginator(s.cli, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: awsString("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pkConfig(environment, namespace)},
			":sk": &ddbTypes.AttributeValueMemberS{Value: SName + "#"},
		},
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, types.Err(types.ErrConfigSource, err, "")
		}
		for _, raw := range out.Items {
			var item configItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, types.Err(types.ErrConfigSource, err, "")
			}
			if _, err := parseName(item.SK); err != nil {
				return nil, types.Err(types.ErrConfigSource, err, "")
			}
			entries = append(entries, item.ConfigEntry)
		}
	}
	return entries, nil
}
