/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

// S3Store publishes artifacts into an S3 bucket.
type S3Store struct {
	// Config is the Amazon S3 configuration.
	Config aws.Config

	// Client is initialized in Init() with the default Config, but callers
	// can override it with their own s3 client.
	Client *s3.Client

	bucketName string
	prefix     string
	publicBase string
	log        logrus.FieldLogger
}

// NewS3Store returns a store for bucketName. Callers must invoke Init()
// before use.
func NewS3Store(bucketName, prefix, publicBase string,
	log logrus.FieldLogger) *S3Store {

	return &S3Store{
		bucketName: bucketName,
		prefix:     prefix,
		publicBase: publicBase,
		log:        log,
	}
}

// Init loads credentials from the default sources:
// * Environment Variables (e.g. AWS_ACCESS_KEY_ID and AWS_SECRET_KEY)
// * Shared Configuration and Shared Credentials files.
func (s *S3Store) Init(ctx context.Context) error {
	var err error
	s.Config, err = awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("artifact.s3: failed to load AWS config: %w", err)
	}
	s.Client = s3.NewFromConfig(s.Config)

	return nil
}

// Check verifies the bucket exists and objects can be listed.
func (s *S3Store) Check(ctx context.Context) error {
	if _, err := s.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	}); err != nil {
		return fmt.Errorf("artifact.s3: head bucket failed for %s: %w",
			s.bucketName, err)
	}
	if _, err := s.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucketName),
		MaxKeys: aws.Int32(1),
	}); err != nil {
		return fmt.Errorf("artifact.s3: list objects failed for %s: %w",
			s.bucketName, err)
	}

	return nil
}

func (s *S3Store) objectKey(key string) string {
	return joinKey(s.prefix, key)
}

// Publish uploads data. A new artifact is written with a conditional put so
// that an existing object of the same name is reported rather than
// silently replaced; the upload then proceeds as an update.
func (s *S3Store) Publish(ctx context.Context, key string, data []byte,
	isNew bool) error {

	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucketName),
		Key:          aws.String(s.objectKey(key)),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("image/png"),
		CacheControl: aws.String("no-cache"),
	}
	if isNew {
		input.IfNoneMatch = aws.String("*")
	}

	_, err := s.Client.PutObject(ctx, input)
	if err != nil && isNew && isPreconditionFailed(err) {
		s.log.Warnf("artifact.s3: %v%v already exists; overwriting",
			s.bucketName, *input.Key)
		input.IfNoneMatch = nil
		input.Body = bytes.NewReader(data)
		_, err = s.Client.PutObject(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("artifact.s3: put failed for %v/%v: %w",
			s.bucketName, *input.Key, err)
	}

	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		(apiErr.ErrorCode() == "PreconditionFailed" ||
			apiErr.ErrorCode() == "ConditionalRequestConflict")
}

func (s *S3Store) PublicURL(key string) string {
	if s.publicBase != "" {
		return publicURL(s.publicBase, s.objectKey(key))
	}
	return fmt.Sprintf("https://%v.s3.amazonaws.com/%v", s.bucketName,
		s.objectKey(key))
}
