package accountscan

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/stackaudit/stackaudit/types"
)

type IAccountScanClient interface {
	ScanAccount(ctx context.Context) (*types.ResourceGraph, error)
}

// AccountScanClient inventories a live AWS account into the same
// ResourceGraph shape the file parser produces, so live scans and file
// scans feed the same pipeline. Coverage is the services the compliance
// rules know about: S3, EC2 and RDS.
type AccountScanClient struct {
	AccountID      string
	Regions        []string
	IgnorePatterns []string
	S3Client       *s3.Client
	EC2Client      func(region string) *ec2.Client
	RDSClient      func(region string) *rds.Client
	Logger         *logrus.Logger
}

func NewAccountScanClient(cfg aws.Config, accountID string, regions []string, ignorePatterns []string, logger *logrus.Logger) *AccountScanClient {
	return &AccountScanClient{
		AccountID:      accountID,
		Regions:        regions,
		IgnorePatterns: ignorePatterns,
		S3Client:       s3.NewFromConfig(cfg),
		EC2Client: func(region string) *ec2.Client {
			return ec2.NewFromConfig(cfg, func(options *ec2.Options) { options.Region = region })
		},
		RDSClient: func(region string) *rds.Client {
			return rds.NewFromConfig(cfg, func(options *rds.Options) { options.Region = region })
		},
		Logger: logger,
	}
}

func (accountScanClient *AccountScanClient) ScanAccount(ctx context.Context) (*types.ResourceGraph, error) {
	graph := &types.ResourceGraph{Resources: []*types.Resource{}}
	graph.Metadata.FileName = fmt.Sprintf("account:%s", accountScanClient.AccountID)
	graph.Metadata.AnalysisType = "live-account"

	if err := accountScanClient.scanBuckets(ctx, graph); err != nil {
		return nil, err
	}

	for _, region := range accountScanClient.Regions {
		accountScanClient.Logger.Infof("Scanning region %s", region)
		if err := accountScanClient.scanInstances(ctx, region, graph); err != nil {
			return nil, err
		}
		if err := accountScanClient.scanDatabases(ctx, region, graph); err != nil {
			return nil, err
		}
	}

	graph.Finalize()
	accountScanClient.Logger.Infof("Live scan of account %s found %d resources",
		accountScanClient.AccountID, graph.Metadata.ResourceCount)
	return graph, nil
}

func (accountScanClient *AccountScanClient) scanBuckets(ctx context.Context, graph *types.ResourceGraph) error {
	output, err := accountScanClient.S3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return fmt.Errorf("listing buckets: %w", err)
	}

	for _, bucket := range output.Buckets {
		name := aws.ToString(bucket.Name)
		if accountScanClient.shouldIgnore(name) {
			continue
		}
		accountScanClient.Logger.Tracef("Adding bucket %s", name)
		graph.Resources = append(graph.Resources, &types.Resource{
			Type:         "AWS::S3::Bucket",
			Name:         name,
			Properties:   map[string]any{"BucketName": name},
			Metadata:     map[string]any{"source": "live-account"},
			Dependencies: []string{},
			Tags:         map[string]string{},
			Location:     types.SourceLocation{File: graph.Metadata.FileName, Block: name},
		})
	}
	return nil
}

func (accountScanClient *AccountScanClient) scanInstances(ctx context.Context, region string, graph *types.ResourceGraph) error {
	client := accountScanClient.EC2Client(region)
	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("describing instances in %s: %w", region, err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				instanceID := aws.ToString(instance.InstanceId)
				if accountScanClient.shouldIgnore(instanceID) {
					continue
				}
				tags := map[string]string{}
				for _, tag := range instance.Tags {
					tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
				}
				accountScanClient.Logger.Tracef("Adding instance %s", instanceID)
				graph.Resources = append(graph.Resources, &types.Resource{
					Type: "AWS::EC2::Instance",
					Name: instanceID,
					Properties: map[string]any{
						"InstanceType": string(instance.InstanceType),
						"region":       region,
					},
					Metadata:     map[string]any{"source": "live-account"},
					Dependencies: []string{},
					Tags:         tags,
					Location:     types.SourceLocation{File: graph.Metadata.FileName, Block: instanceID},
				})
			}
		}
	}
	return nil
}

func (accountScanClient *AccountScanClient) scanDatabases(ctx context.Context, region string, graph *types.ResourceGraph) error {
	client := accountScanClient.RDSClient(region)
	paginator := rds.NewDescribeDBInstancesPaginator(client, &rds.DescribeDBInstancesInput{})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("describing databases in %s: %w", region, err)
		}
		for _, database := range page.DBInstances {
			identifier := aws.ToString(database.DBInstanceIdentifier)
			if accountScanClient.shouldIgnore(identifier) {
				continue
			}
			properties := map[string]any{
				"Engine": aws.ToString(database.Engine),
				"region": region,
			}
			if database.StorageEncrypted != nil && *database.StorageEncrypted {
				properties["StorageEncrypted"] = true
			}
			accountScanClient.Logger.Tracef("Adding database %s", identifier)
			graph.Resources = append(graph.Resources, &types.Resource{
				Type:         "AWS::RDS::DBInstance",
				Name:         identifier,
				Properties:   properties,
				Metadata:     map[string]any{"source": "live-account"},
				Dependencies: []string{},
				Tags:         map[string]string{},
				Location:     types.SourceLocation{File: graph.Metadata.FileName, Block: identifier},
			})
		}
	}
	return nil
}

func (accountScanClient *AccountScanClient) shouldIgnore(identifier string) bool {
	for _, pattern := range accountScanClient.IgnorePatterns {
		matched, err := regexp.MatchString(pattern, identifier)
		if err != nil {
			accountScanClient.Logger.Debugf("Error matching pattern %s: %v", pattern, err)
			continue
		}
		if matched {
			accountScanClient.Logger.Tracef("Ignoring resource %s", identifier)
			return true
		}
	}
	return false
}
