package ddb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	SConfig = "CONFIG"
	SName   = "NAME"
)

func pkConfig(environment, namespace string) string {
	return fmt.Sprintf("%s#%s#%s", SConfig, environment, namespace)
}
func skName(name string) string { return fmt.Sprintf("%s#%s", SName, name) }

func parseName(sk string) (string, error) {
	name, ok := strings.CutPrefix(sk, SName+"#")
	if !ok {
		return "", fmt.Errorf("unexpected sort key %q", sk)
	}
	return name, nil
}

func createTableIfNotExists(client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(context.Background(), &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		log.WithError(err).Errorf("failed to create table %s", table)
		return err
	}
	return nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
