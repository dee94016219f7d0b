package restbackup

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/fjacquet/restbackup/internal/models"
)

// BackupAPI stores and retrieves files of one backup account.
type BackupAPI struct {
	caller *HTTPCaller
}

// NewBackupAPI returns a Backup API client for accessURL.
func NewBackupAPI(accessURL string, opts ...Option) (*BackupAPI, error) {
	caller, err := NewHTTPCaller(accessURL, opts...)
	if err != nil {
		return nil, err
	}
	return &BackupAPI{caller: caller}, nil
}

// NewBackupAPIForAccount returns a Backup API client for an account returned
// by the Management API.
func NewBackupAPIForAccount(account models.BackupAccountDetails, opts ...Option) (*BackupAPI, error) {
	return NewBackupAPI(account.AccessURL, opts...)
}

// Caller returns the underlying HTTPCaller.
func (b *BackupAPI) Caller() *HTTPCaller {
	return b.caller
}

func (b *BackupAPI) String() string {
	return fmt.Sprintf("BackupAPI(%q)", b.caller.AccessURL().Redacted())
}

// Close releases the caller's resources.
func (b *BackupAPI) Close() error {
	return b.caller.Close()
}

// Put uploads body as uri. size is the body length, or -1 if unknown.
// Uploading to a name that already exists yields an error matching
// ErrResourceExists. The caller must close the returned response.
func (b *BackupAPI) Put(ctx context.Context, uri string, body io.Reader, size int64) (*Response, error) {
	resp, err := b.caller.Put(ctx, uri, body, size, nil)
	if err != nil {
		return nil, remapStatus(err, http.StatusMethodNotAllowed, ErrResourceExists)
	}
	return resp, nil
}

// Get downloads uri. The response body streams the file contents and must be
// closed by the caller. A missing file yields an error matching
// ErrResourceNotFound.
func (b *BackupAPI) Get(ctx context.Context, uri string) (*Response, error) {
	resp, err := b.caller.Get(ctx, uri, nil)
	if err != nil {
		return nil, remapStatus(err, http.StatusNotFound, ErrResourceNotFound)
	}
	return resp, nil
}

// GetFile downloads the file described by f.
func (b *BackupAPI) GetFile(ctx context.Context, f models.FileDetails) (*Response, error) {
	return b.Get(ctx, f.URI)
}

// List returns the files stored in the account, in the order the service
// lists them.
func (b *BackupAPI) List(ctx context.Context) ([]models.FileDetails, error) {
	resp, err := b.caller.Get(ctx, "/", map[string]string{HeaderAccept: ContentTypeJSON})
	if err != nil {
		return nil, err
	}

	var items []models.FileResponse
	if err := decodeJSON(resp, &items); err != nil {
		return nil, err
	}
	files := make([]models.FileDetails, 0, len(items))
	for _, item := range items {
		files = append(files, item.Details())
	}
	return files, nil
}
