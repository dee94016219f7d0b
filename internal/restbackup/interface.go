package restbackup

import (
	"context"
	"io"

	"github.com/fjacquet/restbackup/internal/models"
)

// AccountManager abstracts the Management API so that commands can be tested
// against a fake.
//
// The primary implementation is ManagementAPI.
type AccountManager interface {
	// CreateBackupAccount creates an account and returns its details,
	// including the access-URL of its Backup API.
	CreateBackupAccount(ctx context.Context, description string, retainDays int) (models.BackupAccountDetails, error)

	// GetBackupAccount returns an account. Errors match ErrResourceNotFound
	// when the account does not exist.
	GetBackupAccount(ctx context.Context, accountID string) (models.BackupAccountDetails, error)

	// DeleteBackupAccount deletes an account and returns the confirmation text.
	DeleteBackupAccount(ctx context.Context, accountID string) (string, error)

	// ListBackupAccounts returns every account without access-URLs.
	ListBackupAccounts(ctx context.Context) ([]models.BackupAccount, error)

	Close() error
}

// FileStore abstracts the Backup API of one account.
//
// The primary implementation is BackupAPI.
type FileStore interface {
	Put(ctx context.Context, uri string, body io.Reader, size int64) (*Response, error)
	Get(ctx context.Context, uri string) (*Response, error)
	List(ctx context.Context) ([]models.FileDetails, error)
	Close() error
}

var (
	_ AccountManager = (*ManagementAPI)(nil)
	_ FileStore      = (*BackupAPI)(nil)
)
