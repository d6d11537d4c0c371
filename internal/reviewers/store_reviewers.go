package reviewers

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/BrainlyTree-Project/Backend/models"
	"github.com/BrainlyTree-Project/Backend/pkg/db"
)

// ReviewerStore reads reviewer assignments and profiles. Assignments are
// keyed by company; the reviewer profile rows live in their own table.
type ReviewerStore struct {
	Client           *dynamodb.Client
	AssignmentsTable string
	ReviewersTable   string
}

func NewReviewerStore() (*ReviewerStore, error) {
	assignmentsTable := os.Getenv("DYNAMODB_ASSIGNMENTS_TABLE")
	if assignmentsTable == "" {
		return nil, fmt.Errorf("DYNAMODB_ASSIGNMENTS_TABLE environment variable is not set")
	}

	reviewersTable := os.Getenv("DYNAMODB_REVIEWERS_TABLE")
	if reviewersTable == "" {
		return nil, fmt.Errorf("DYNAMODB_REVIEWERS_TABLE environment variable is not set")
	}

	if db.Client == nil {
		return nil, fmt.Errorf("dynamodb client is not initialized")
	}

	return &ReviewerStore{
		Client:           db.Client,
		AssignmentsTable: assignmentsTable,
		ReviewersTable:   reviewersTable,
	}, nil
}

// SiteReviewers returns reviewers assigned to one specific site.
func (s *ReviewerStore) SiteReviewers(ctx context.Context, companyID, siteID string) ([]models.Reviewer, error) {
	return s.assignmentQuery(ctx, companyID, aws.String("site_id = :site_id"), map[string]types.AttributeValue{
		":company_id": &types.AttributeValueMemberS{Value: companyID},
		":site_id":    &types.AttributeValueMemberS{Value: siteID},
		":active":     &types.AttributeValueMemberBOOL{Value: true},
	})
}

// CompanyReviewers returns reviewers assigned company-wide, i.e. rows with
// no site restriction.
func (s *ReviewerStore) CompanyReviewers(ctx context.Context, companyID string) ([]models.Reviewer, error) {
	return s.assignmentQuery(ctx, companyID, aws.String("attribute_not_exists(site_id)"), map[string]types.AttributeValue{
		":company_id": &types.AttributeValueMemberS{Value: companyID},
		":active":     &types.AttributeValueMemberBOOL{Value: true},
	})
}

// SuperAdmins returns every active super-administrator, the final fallback
// tier.
func (s *ReviewerStore) SuperAdmins(ctx context.Context) ([]models.Reviewer, error) {
	out, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.ReviewersTable),
		IndexName:              aws.String("RoleIndex"),
		KeyConditionExpression: aws.String("#role = :role"),
		FilterExpression:       aws.String("active = :active"),
		ExpressionAttributeNames: map[string]string{
			"#role": "role",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":role":   &types.AttributeValueMemberS{Value: models.RoleSuperAdmin},
			":active": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query super admins: %w", err)
	}

	var admins []models.Reviewer
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &admins); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reviewers: %w", err)
	}

	return admins, nil
}

func (s *ReviewerStore) assignmentQuery(ctx context.Context, companyID string, scopeFilter *string, values map[string]types.AttributeValue) ([]models.Reviewer, error) {
	filter := "active = :active"
	if scopeFilter != nil {
		filter += " AND " + *scopeFilter
	}

	out, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.AssignmentsTable),
		KeyConditionExpression:    aws.String("company_id = :company_id"),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}

	var assignments []models.ReviewerAssignment
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &assignments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assignments: %w", err)
	}

	var reviewers []models.Reviewer
	for _, a := range assignments {
		rv, err := s.getReviewer(ctx, a.ReviewerID)
		if err != nil {
			return nil, err
		}
		if rv != nil {
			reviewers = append(reviewers, *rv)
		}
	}

	return reviewers, nil
}

func (s *ReviewerStore) getReviewer(ctx context.Context, reviewerID string) (*models.Reviewer, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.ReviewersTable),
		Key: map[string]types.AttributeValue{
			"reviewer_id": &types.AttributeValueMemberS{Value: reviewerID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}

	if out.Item == nil {
		// Dangling assignment; skip rather than fail the whole lookup.
		return nil, nil
	}

	var rv models.Reviewer
	if err := attributevalue.UnmarshalMap(out.Item, &rv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reviewer: %w", err)
	}

	return &rv, nil
}
