package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/likeface/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// An empty projectID is detected from the credentials.
func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	client, err := firestore.NewClient(ctx, projectID, ClientOptions(credentialsFile)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// UserRepository writes generated face URLs onto existing user documents.
type UserRepository struct {
	client     *firestore.Client
	collection string
}

// NewUserRepository returns a repository over the named collection.
func NewUserRepository(client *firestore.Client, collection string) *UserRepository {
	return &UserRepository{client: client, collection: collection}
}

// UpdateLikeFace overwrites likeface_url and updatedAt on the user's document.
// Update fails when the document does not exist; no document is created.
func (r *UserRepository) UpdateLikeFace(ctx context.Context, userID, url string, at time.Time) error {
	if _, err := r.client.Collection(r.collection).Doc(userID).Update(ctx, likeFaceUpdates(url, at)); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", r.collection, userID, err)
	}
	return nil
}

// likeFaceUpdates touches only the two face fields; every other field of the
// user document is left as it is.
func likeFaceUpdates(url string, at time.Time) []firestore.Update {
	return []firestore.Update{
		{Path: models.FieldLikeFaceURL, Value: url},
		{Path: models.FieldUpdatedAt, Value: at},
	}
}
