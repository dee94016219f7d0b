package restbackup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fjacquet/restbackup/internal/models"
	"github.com/fjacquet/restbackup/internal/utils"
)

// DefaultSettleDelay is how long CreateBackupAccount waits before returning,
// giving the service time to make the new account usable.
const DefaultSettleDelay = 5 * time.Second

// WithSettleDelay overrides DefaultSettleDelay for a ManagementAPI. Zero
// disables the wait.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		o.settleDelay = &d
	}
}

// accountForm is the body of an account creation request.
type accountForm struct {
	Description string `url:"description"`
	RetainDays  int    `url:"retaindays"`
}

// ManagementAPI manages backup accounts through the Management API.
type ManagementAPI struct {
	caller      *HTTPCaller
	settleDelay time.Duration
}

// NewManagementAPI returns a Management API client for accessURL.
func NewManagementAPI(accessURL string, opts ...Option) (*ManagementAPI, error) {
	o := resolveOptions(opts)
	delay := DefaultSettleDelay
	if o.settleDelay != nil {
		delay = *o.settleDelay
	}
	if delay < 0 {
		return nil, fmt.Errorf("%w: settle delay must not be negative, got %s", ErrInvalidArgument, delay)
	}

	caller, err := NewHTTPCaller(accessURL, opts...)
	if err != nil {
		return nil, err
	}
	return &ManagementAPI{caller: caller, settleDelay: delay}, nil
}

// Caller returns the underlying HTTPCaller.
func (m *ManagementAPI) Caller() *HTTPCaller {
	return m.caller
}

// SettleDelay returns the wait applied after account creation.
func (m *ManagementAPI) SettleDelay() time.Duration {
	return m.settleDelay
}

func (m *ManagementAPI) String() string {
	return fmt.Sprintf("ManagementAPI(%q)", m.caller.AccessURL().Redacted())
}

// Close releases the caller's resources.
func (m *ManagementAPI) Close() error {
	return m.caller.Close()
}

// CreateBackupAccount creates an account and waits the settle delay before
// returning its details, including the Backup API access-URL.
func (m *ManagementAPI) CreateBackupAccount(ctx context.Context, description string, retainDays int) (models.BackupAccountDetails, error) {
	return m.CreateBackupAccountWithDelay(ctx, description, retainDays, m.settleDelay)
}

// CreateBackupAccountWithDelay is CreateBackupAccount with an explicit settle
// delay. If ctx is done during the wait, the created account is returned along
// with the context error.
func (m *ManagementAPI) CreateBackupAccountWithDelay(ctx context.Context, description string, retainDays int, delay time.Duration) (models.BackupAccountDetails, error) {
	form, err := encodeForm(accountForm{Description: description, RetainDays: retainDays})
	if err != nil {
		return models.BackupAccountDetails{}, err
	}

	resp, err := m.caller.PostForm(ctx, "/", form)
	if err != nil {
		return models.BackupAccountDetails{}, err
	}
	if resp.StatusCode != http.StatusCreated {
		return models.BackupAccountDetails{}, unexpectedStatus(http.MethodPost, "/", http.StatusCreated, resp)
	}

	var account models.AccountResponse
	if err := decodeJSON(resp, &account); err != nil {
		return models.BackupAccountDetails{}, err
	}
	details := account.Details()

	if delay > 0 {
		m.caller.log.Infof("Waiting %s for account %s to become usable", delay, details.AccountID)
		if err := utils.Pause(ctx, delay); err != nil {
			return details, fmt.Errorf("waiting for account %s: %w", details.AccountID, err)
		}
	}
	return details, nil
}

// GetBackupAccount returns the details of an account.
// A missing account yields an error matching ErrResourceNotFound.
func (m *ManagementAPI) GetBackupAccount(ctx context.Context, accountID string) (models.BackupAccountDetails, error) {
	resp, err := m.caller.Get(ctx, accountID, nil)
	if err != nil {
		return models.BackupAccountDetails{}, remapStatus(err, http.StatusNotFound, ErrResourceNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return models.BackupAccountDetails{}, unexpectedStatus(http.MethodGet, accountID, http.StatusOK, resp)
	}

	var account models.AccountResponse
	if err := decodeJSON(resp, &account); err != nil {
		return models.BackupAccountDetails{}, err
	}
	return account.Details(), nil
}

// DeleteBackupAccount deletes an account and returns the service's
// confirmation text. A missing account yields an error matching
// ErrResourceNotFound.
func (m *ManagementAPI) DeleteBackupAccount(ctx context.Context, accountID string) (string, error) {
	resp, err := m.caller.Delete(ctx, accountID)
	if err != nil {
		return "", remapStatus(err, http.StatusNotFound, ErrResourceNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus(http.MethodDelete, accountID, http.StatusOK, resp)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response body: %w", ErrTerminalProtocol, err)
	}
	return string(body), nil
}

// ListBackupAccounts returns every account. The listing does not include
// access-URLs.
func (m *ManagementAPI) ListBackupAccounts(ctx context.Context) ([]models.BackupAccount, error) {
	resp, err := m.caller.Get(ctx, "/", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(http.MethodGet, "/", http.StatusOK, resp)
	}

	var items []models.AccountResponse
	if err := decodeJSON(resp, &items); err != nil {
		return nil, err
	}
	accounts := make([]models.BackupAccount, 0, len(items))
	for _, item := range items {
		accounts = append(accounts, item.Summary())
	}
	return accounts, nil
}
