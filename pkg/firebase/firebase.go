package firebase

import (
	"context"
	"fmt"
	"log"
	"os"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app and the bucket used for uploads
type App struct {
	FirebaseApp *firebase.App
	Bucket      *gcs.BucketHandle
}

// InitFirebase initializes the Firebase application and its storage bucket
func InitFirebase(ctx context.Context, credentialsPath, bucketName string) (*App, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("Firebase credentials path not provided")
	}

	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("Firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)

	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: bucketName}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	storageClient, err := firebaseApp.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase storage client: %w", err)
	}

	bucket, err := storageClient.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("error getting firebase storage bucket: %w", err)
	}

	log.Println("Firebase app and storage bucket initialized successfully!")
	return &App{FirebaseApp: firebaseApp, Bucket: bucket}, nil
}
