// Package firestore keeps counters, results and job submissions in Cloud
// Firestore for serverless deployments.
package firestore

import (
	"arxivshorts/internal/config"
	"context"
	"errors"
	"fmt"
	"net/url"

	fs "cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrNotFound = errors.New("document not found")

// Collections names the top-level collections the stores write to.
type Collections struct {
	Counters    string
	Results     string
	Submissions string
}

// dispositionsCollection is the per-batch subcollection under a counter document.
const dispositionsCollection = "dispositions"

// CollectionsFrom maps the application configuration, filling defaults.
func CollectionsFrom(cfg config.FirestoreConfig) Collections {
	c := Collections{
		Counters:    cfg.CountersCollection,
		Results:     cfg.ResultsCollection,
		Submissions: cfg.SubmissionsCollection,
	}
	if c.Counters == "" {
		c.Counters = "batch_counters"
	}
	if c.Results == "" {
		c.Results = "result_records"
	}
	if c.Submissions == "" {
		c.Submissions = "job_submissions"
	}
	return c
}

// NewClient opens a Firestore client. An empty credentials file uses the
// ambient application default credentials.
func NewClient(ctx context.Context, cfg config.FirestoreConfig) (*fs.Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project id cannot be empty")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := fs.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// docID makes s usable as a document id; ids may not contain '/'.
func docID(s string) string {
	return url.PathEscape(s)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
