// Package awserrors maps AWS API error codes onto the application error
// taxonomy. Classification is by provider error code, never by Go error
// type alone, so retry and existence-probe decisions stay uniform across
// service clients.
package awserrors

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/olusolaa/infra-deployer/internal/errors"
)

var transientCodes = map[string]struct{}{
	"Throttling":                {},
	"ThrottlingException":       {},
	"RequestThrottled":          {},
	"RequestThrottledException": {},
	"RequestLimitExceeded":      {},
	"TooManyRequestsException":  {},
	"ServiceUnavailable":        {},
	"InternalError":             {},
	"InternalFailure":           {},
	"EC2ThrottledException":     {},
	"PriorRequestNotComplete":   {},
	"SlowDown":                  {},
}

var notFoundCodes = map[string]struct{}{
	"InvalidVpcID.NotFound":                     {},
	"InvalidSubnetID.NotFound":                  {},
	"InvalidRouteTableID.NotFound":              {},
	"InvalidGroup.NotFound":                     {},
	"InvalidLaunchTemplateName.NotFoundException": {},
	"NoSuchEntity":              {},
	"NoSuchEntityException":     {},
	"DBInstanceNotFound":        {},
	"DBInstanceNotFoundFault":   {},
	"DBSubnetGroupNotFoundFault": {},
	"NoSuchBucket":              {},
	"NotFound":                  {},
	"404":                       {},
	"ResourceNotFoundException": {},
	"EntityNotFoundException":   {},
	"NotFoundException":         {},
}

var inUseCodes = map[string]struct{}{
	"ResourceInUse":      {},
	"ResourceInUseFault": {},
}

var alreadyExistsCodes = map[string]struct{}{
	"RouteAlreadyExists":          {},
	"InvalidPermission.Duplicate": {},
	"Resource.AlreadyAssociated":  {},
	"BucketAlreadyOwnedByYou":     {},
	"BucketAlreadyExists":         {},
	"DBSubnetGroupAlreadyExists":  {},
	"EntityAlreadyExists":         {},
	"EntityAlreadyExistsException": {},
}

// ErrorCode extracts the provider error code, accepting both real smithy
// API errors and test doubles exposing ErrorCode().
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if coded, ok := err.(interface{ ErrorCode() string }); ok {
		return coded.ErrorCode()
	}
	var apiErr smithy.APIError
	if stderrs.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func IsTransient(err error) bool {
	_, ok := transientCodes[ErrorCode(err)]
	return ok
}

func IsNotFound(err error) bool {
	if _, ok := notFoundCodes[ErrorCode(err)]; ok {
		return true
	}
	// HeadBucket surfaces bare HTTP 404s without a structured code.
	msg := errMessage(err)
	return strings.Contains(msg, "StatusCode: 404") || strings.Contains(msg, "NoSuchBucket")
}

func IsInUse(err error) bool {
	_, ok := inUseCodes[ErrorCode(err)]
	return ok
}

func IsAlreadyExists(err error) bool {
	_, ok := alreadyExistsCodes[ErrorCode(err)]
	return ok
}

func isAuth(err error) bool {
	switch ErrorCode(err) {
	case "AuthFailure", "UnauthorizedOperation", "AccessDenied", "AccessDeniedException":
		return true
	}
	return false
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Classify wraps a provider error with its taxonomy code and enough
// context (resource kind, identifying name) to diagnose a failed run.
func Classify(ctx context.Context, err error, resourceKind, name string) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.CodeTimeout,
			fmt.Sprintf("context canceled during %s call for %q", resourceKind, name))
	}

	where := fmt.Sprintf("%s %q", resourceKind, name)
	switch {
	case IsTransient(err):
		return errors.Wrap(err, errors.CodeTransient, "transient provider error for "+where)
	case IsNotFound(err):
		return errors.Wrap(err, errors.CodeResourceNotFound, where+" not found")
	case IsInUse(err):
		return errors.Wrap(err, errors.CodeResourceInUse, where+" is in use")
	case IsAlreadyExists(err):
		return errors.Wrap(err, errors.CodeAlreadyExists, where+" already exists")
	case isAuth(err):
		return errors.Wrap(err, errors.CodePlatformAuth, "authorization failure accessing "+where)
	default:
		return errors.Wrap(err, errors.CodePlatformAPIError, "provider call failed for "+where)
	}
}
