// Package identity resolves the authenticated caller from the API
// Gateway request context. Authentication itself happens upstream; this
// package only reads its outcome.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/qri-io/jsonpointer"

	"github.com/inkwell-cms/remote-gateway/internal/remote"
)

const (
	usernamePointer = "/claims/cognito:username"
	subPointer      = "/claims/sub"
	groupsPointer   = "/claims/cognito:groups"
)

// CognitoClient is the interface for the Cognito group lookup fallback.
type CognitoClient interface {
	AdminListGroupsForUser(ctx context.Context, params *cognitoidentityprovider.AdminListGroupsForUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminListGroupsForUserOutput, error)
}

// Resolver turns the authorizer context of an incoming request into the
// caller identity the dispatcher consumes. When the groups claim is
// absent from the token, group membership is resolved directly against
// the Cognito user pool.
type Resolver struct {
	cognito    CognitoClient
	userPoolID string
}

// NewResolver creates a resolver. A nil client disables the Cognito
// group fallback.
func NewResolver(cognito CognitoClient, userPoolID string) *Resolver {
	return &Resolver{cognito: cognito, userPoolID: userPoolID}
}

// FromRequest resolves the caller identity. Requests without an
// authorizer context resolve to the anonymous identity; the access
// rules decide what an anonymous caller may do.
func (r *Resolver) FromRequest(ctx context.Context, request events.APIGatewayProxyRequest) (remote.Identity, error) {
	authorizer := request.RequestContext.Authorizer
	if authorizer == nil {
		return remote.Identity{}, nil
	}

	user := claimString(authorizer, usernamePointer)
	if user == "" {
		user = claimString(authorizer, subPointer)
	}
	if user == "" {
		return remote.Identity{}, nil
	}

	groups := claimGroups(authorizer)
	if groups == nil && r.cognito != nil {
		resolved, err := r.lookupGroups(ctx, user)
		if err != nil {
			return remote.Identity{}, fmt.Errorf("failed to resolve groups for %s: %w", user, err)
		}
		groups = resolved
	}

	return remote.Identity{User: user, Groups: groups}, nil
}

// claimString evaluates a JSON pointer against the authorizer context
// and returns the string value, or empty when absent.
func claimString(authorizer map[string]any, path string) string {
	ptr, err := jsonpointer.Parse(path)
	if err != nil {
		return ""
	}
	value, err := ptr.Eval(authorizer)
	if err != nil {
		return ""
	}
	s, _ := value.(string)
	return s
}

// claimGroups reads the groups claim. API Gateway flattens the token's
// group list into a single string, so both the list form and the
// comma-joined form are accepted. Returns nil when the claim is absent.
func claimGroups(authorizer map[string]any) []string {
	ptr, err := jsonpointer.Parse(groupsPointer)
	if err != nil {
		return nil
	}
	value, err := ptr.Eval(authorizer)
	if err != nil || value == nil {
		return nil
	}

	switch v := value.(type) {
	case []any:
		groups := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok && s != "" {
				groups = append(groups, s)
			}
		}
		return groups
	case string:
		trimmed := strings.Trim(v, "[]")
		var groups []string
		for entry := range strings.SplitSeq(trimmed, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				groups = append(groups, entry)
			}
		}
		if groups == nil {
			return []string{}
		}
		return groups
	default:
		return nil
	}
}

// lookupGroups lists the user's groups from the Cognito user pool.
func (r *Resolver) lookupGroups(ctx context.Context, user string) ([]string, error) {
	groups := []string{}
	var nextToken *string
	for {
		output, err := r.cognito.AdminListGroupsForUser(ctx, &cognitoidentityprovider.AdminListGroupsForUserInput{
			UserPoolId: aws.String(r.userPoolID),
			Username:   aws.String(user),
			NextToken:  nextToken,
		})
		if err != nil {
			return nil, err
		}
		for _, group := range output.Groups {
			if group.GroupName != nil {
				groups = append(groups, *group.GroupName)
			}
		}
		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}
	return groups, nil
}
