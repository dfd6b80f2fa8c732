package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tmellor/forge/pkg/handler"
)

// greetHandler backs the "greet" demo command: a minimal single handler
// that writes to stdout and sets structured data from a required string
// option.
func greetHandler() handler.Handler {
	return handler.HandlerFunc(func(p handler.Params) error {
		name, _ := p.Arguments.Named["name"].(string)
		email, _ := p.Arguments.Named["email"].(string)
		p.Response.Stdout(fmt.Sprintf("hello %s\n", name))
		data := map[string]any{"greeted": name}
		if email != "" {
			data["email"] = email
		}
		p.Response.SetData(data)
		p.Response.Succeeded()
		return nil
	})
}

// pipelineStep1Handler backs the first step of the "pipeline" demo chain:
// it produces a token in its structured data for the next step to bind as
// an argument.
func pipelineStep1Handler() handler.Handler {
	return handler.HandlerFunc(func(p handler.Params) error {
		p.Response.Stdout("step1: issued token\n")
		p.Response.SetData(map[string]any{"token": "demo-token"})
		p.Response.Succeeded()
		return nil
	})
}

// pipelineStep2Handler backs the second step: it receives "auth" bound
// from step1's "token" field via the command tree's ArgMapping, signs it
// into a short-lived JWT, and reports the signed token as its own
// structured data. JWT signing here is a handler-level concern, distinct
// from internal/credential/jwtstore's use of the same library as a
// credential backend.
func pipelineStep2Handler() handler.Handler {
	return handler.HandlerFunc(func(p handler.Params) error {
		auth, _ := p.Arguments.Named["auth"].(string)
		if auth == "" {
			return &handler.ImperativeError{Message: "step2 requires an upstream token"}
		}

		claims := jwt.MapClaims{
			"sub": auth,
			"exp": time.Now().Add(5 * time.Minute).Unix(),
		}
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := tok.SignedString([]byte("demo-pipeline-signing-key-0123456789"))
		if err != nil {
			return &handler.UnhandledError{Message: "failed to sign pipeline token", Stack: err.Error()}
		}

		p.Response.Stdout("step2: minted signed token\n")
		p.Response.SetData(map[string]any{"signedToken": signed})
		p.Response.Succeeded()
		return nil
	})
}

// s3ListHandler backs the "aws s3 ls" demo command: it resolves the "aws"
// profile type (region/bucket plain fields, access key/secret secure
// fields materialized through the credential backend) and lists objects in
// the configured bucket, exercising profile resolution end to end.
func s3ListHandler() handler.Handler {
	return handler.HandlerFunc(func(p handler.Params) error {
		prof, ok := p.Profiles.Get("aws")
		if !ok {
			return &handler.ImperativeError{Message: "aws profile is required"}
		}

		region, _ := prof.Fields["region"].(string)
		bucket, _ := prof.Fields["bucket"].(string)
		endpoint, _ := prof.Fields["endpoint"].(string)
		forcePathStyle, _ := prof.Fields["forcePathStyle"].(bool)
		accessKeyID, _ := prof.Fields["accessKeyID"].(string)
		secretAccessKey, _ := prof.Fields["secretAccessKey"].(string)

		if bucket == "" {
			return &handler.ImperativeError{Message: "aws profile is missing a bucket"}
		}

		client, err := newS3Client(p.Ctx, region, endpoint, accessKeyID, secretAccessKey, forcePathStyle)
		if err != nil {
			return &handler.UnhandledError{Message: "failed to build s3 client", Stack: err.Error()}
		}

		out, err := client.ListObjectsV2(p.Ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
		if err != nil {
			return &handler.ImperativeError{Message: fmt.Sprintf("listing bucket %q failed", bucket), AdditionalDetails: err.Error()}
		}

		keys := make([]string, 0, len(out.Contents))
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
			p.Response.Stdout(fmt.Sprintf("%s\n", derefString(obj.Key)))
		}

		p.Response.SetData(map[string]any{"bucket": bucket, "keys": keys})
		p.Response.Succeeded()
		return nil
	})
}

func newS3Client(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string, forcePathStyle bool) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, secretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = forcePathStyle
	}), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
