// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ptstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ArchiveConfig configures an optional cold-archive upload target,
// mirroring pkg/archive/parquet's S3TargetConfig.
type S3ArchiveConfig struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// S3Archiver uploads closed (flushed) store segments to an S3-compatible
// object store for cold storage. It never deletes or rewrites the local
// header/data files; ArchiveClosedSegment is purely additive, so a failed or
// partial upload never endangers the store's own durability.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver builds an archiver from cfg. The AWS config load happens
// once, at construction, the same way pkg/archive/parquet.NewS3Target does.
func NewS3Archiver(ctx context.Context, cfg S3ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("[PTSTORE]> s3 archiver: empty bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("[PTSTORE]> s3 archiver: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	return &S3Archiver{client: s3.NewFromConfig(awsCfg, opts), bucket: cfg.Bucket}, nil
}

// ArchiveClosedSegment flushes s (so the upload sees every row accepted so
// far), then uploads its header file uncompressed to key+".pts.hdr" and a
// gzip-compressed copy of its data file to key+".pts.data.gz" under the
// archiver's bucket. Intended for a segment that has already been rotated
// out of active use by the caller; ptstore itself has no notion of rotation.
func (a *S3Archiver) ArchiveClosedSegment(ctx context.Context, s *Store, key string) error {
	if err := s.Flush(); err != nil {
		return err
	}

	s.mu.Lock()
	dir, base := s.repo.dir, s.repo.base
	s.mu.Unlock()

	if err := a.putFile(ctx, headerPath(dir, base), key+headerSuffix); err != nil {
		return err
	}
	return a.putFileGzip(ctx, dataPath(dir, base), key+dataSuffix+".gz")
}

func (a *S3Archiver) putFile(ctx context.Context, path, objectKey string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newErr(KindIO, err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("[PTSTORE]> s3 archiver: put object %q: %w", objectKey, err)
	}
	return nil
}

// putFileGzip reads path, gzip-compresses it in full (data files are log
// segments, not streamed uploads, so buffering the compressed form is fine),
// and uploads it with a Content-Encoding header so a client that fetches it
// with gzip-aware tooling gets the original bytes back transparently.
func (a *S3Archiver) putFileGzip(ctx context.Context, path, objectKey string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newErr(KindIO, err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return newErr(KindIO, err)
	}
	if err := gw.Close(); err != nil {
		return newErr(KindIO, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(objectKey),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("text/plain"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("[PTSTORE]> s3 archiver: put object %q: %w", objectKey, err)
	}
	return nil
}
