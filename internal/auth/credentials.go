package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/option"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Credentials is the single configured administrator login.
type Credentials struct {
	email string
	hash  []byte
}

func NewCredentials(email, bcryptHash string) (*Credentials, error) {
	if email == "" || bcryptHash == "" {
		return nil, errors.New("admin email and password hash are required")
	}
	if _, err := bcrypt.Cost([]byte(bcryptHash)); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}
	return &Credentials{email: strings.ToLower(strings.TrimSpace(email)), hash: []byte(bcryptHash)}, nil
}

// Check compares the email case-insensitively and the password against the
// bcrypt hash.
func (c *Credentials) Check(email, password string) error {
	if strings.ToLower(strings.TrimSpace(email)) != c.email {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(c.hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (c *Credentials) Email() string { return c.email }

// LoadPasswordHash reads the latest version of the named secret from Secret
// Manager. name may be a bare secret id or a full resource path.
func LoadPasswordHash(ctx context.Context, projectID, name string, opts ...option.ClientOption) (string, error) {
	if projectID == "" && !strings.HasPrefix(name, "projects/") {
		return "", errors.New("GCP project ID is required to read the admin password secret")
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	defer client.Close()

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretVersionName(projectID, name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return strings.TrimSpace(string(result.Payload.Data)), nil
}

func secretVersionName(projectID, name string) string {
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name
		}
		return name + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, name)
}
