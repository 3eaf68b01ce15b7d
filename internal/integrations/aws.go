package integrations

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/orchestrator"
)

// AWSActions implements recovery actions against AWS resources
type AWSActions struct {
	ec2Client *ec2.Client
	rdsClient *rds.Client
}

// NewAWSActions creates AWSActions with the specified region
func NewAWSActions(ctx context.Context, region string) (*AWSActions, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return &AWSActions{
		ec2Client: ec2.NewFromConfig(cfg),
		rdsClient: rds.NewFromConfig(cfg),
	}, nil
}

// Register installs the AWS-backed handlers
func (a *AWSActions) Register(registry *orchestrator.HandlerRegistry) {
	registry.RegisterFunc(domain.ActionFailover, a.failover)
}

// failover promotes a standby. Parameters: "db_cluster_id" triggers an RDS
// cluster failover; "instance_ids" (comma separated) reboots EC2 instances
// instead. Defaults to an RDS failover of a cluster named after the service.
func (a *AWSActions) failover(ctx context.Context, action *domain.RecoveryAction) (bool, error) {
	if ids := action.Parameters["instance_ids"]; ids != "" {
		return a.rebootEC2(ctx, strings.Split(ids, ","))
	}

	clusterID := action.Parameters["db_cluster_id"]
	if clusterID == "" {
		clusterID = action.TargetService
	}

	_, err := a.rdsClient.FailoverDBCluster(ctx, &rds.FailoverDBClusterInput{
		DBClusterIdentifier: aws.String(clusterID),
	})
	if err != nil {
		return false, fmt.Errorf("failover RDS %s: %w", clusterID, err)
	}
	log.Printf("Triggered RDS failover: %s", clusterID)
	return true, nil
}

func (a *AWSActions) rebootEC2(ctx context.Context, instanceIDs []string) (bool, error) {
	for i := range instanceIDs {
		instanceIDs[i] = strings.TrimSpace(instanceIDs[i])
	}
	_, err := a.ec2Client.RebootInstances(ctx, &ec2.RebootInstancesInput{
		InstanceIds: instanceIDs,
	})
	if err != nil {
		return false, fmt.Errorf("reboot EC2 instances: %w", err)
	}
	log.Printf("Rebooted EC2 instances: %v", instanceIDs)
	return true, nil
}
