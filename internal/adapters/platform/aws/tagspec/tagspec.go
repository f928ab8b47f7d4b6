// Package tagspec converts domain tag sets into EC2 request shapes.
// Deterministic key order keeps request payloads stable between runs.
package tagspec

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/olusolaa/infra-deployer/internal/core/domain"
)

func Tags(tags domain.TagSet) []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(tags))
	for _, k := range tags.SortedKeys() {
		out = append(out, ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func For(resourceType ec2types.ResourceType, tags domain.TagSet) []ec2types.TagSpecification {
	return []ec2types.TagSpecification{{
		ResourceType: resourceType,
		Tags:         Tags(tags),
	}}
}
