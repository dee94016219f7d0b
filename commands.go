package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fjacquet/restbackup/internal/restbackup"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultRetainDays = 30

// managementAPI opens the Management API of the configured access-URL.
func (a *app) managementAPI() (restbackup.AccountManager, error) {
	if a.cfg.Management.AccessURL == "" {
		return nil, errors.New("no management access-url configured (set management.accessUrl or RESTBACKUP_MANAGEMENT_ACCESS_URL)")
	}
	opts := append(a.clientOptions(), restbackup.WithSettleDelay(a.cfg.GetSettleDelay()))
	return a.newAccountManager(a.cfg.Management.AccessURL, opts...)
}

// backupAPI opens the Backup API of the configured access-URL, or of
// accountID looked up through the Management API when no Backup API
// access-URL is configured.
func (a *app) backupAPI(ctx context.Context, accountID string) (restbackup.FileStore, error) {
	if a.cfg.Backup.AccessURL != "" {
		return a.newFileStore(a.cfg.Backup.AccessURL, a.clientOptions()...)
	}
	if accountID == "" {
		return nil, errors.New("no backup access-url configured (set backup.accessUrl, RESTBACKUP_BACKUP_ACCESS_URL or --account)")
	}

	man, err := a.managementAPI()
	if err != nil {
		return nil, err
	}
	defer man.Close()

	account, err := man.GetBackupAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("looking up account %s: %w", accountID, err)
	}
	return a.newFileStore(account.AccessURL, a.clientOptions()...)
}

func openManagementAPI(accessURL string, opts ...restbackup.Option) (restbackup.AccountManager, error) {
	man, err := restbackup.NewManagementAPI(accessURL, opts...)
	if err != nil {
		return nil, err
	}
	return man, nil
}

func openBackupAPI(accessURL string, opts ...restbackup.Option) (restbackup.FileStore, error) {
	api, err := restbackup.NewBackupAPI(accessURL, opts...)
	if err != nil {
		return nil, err
	}
	return api, nil
}

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage backup accounts through the Management API",
	}

	var retainDays int
	var showAccessURL bool
	createCmd := &cobra.Command{
		Use:   "create <description>",
		Short: "Create a backup account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				man, err := a.managementAPI()
				if err != nil {
					return err
				}
				defer man.Close()

				details, err := man.CreateBackupAccount(ctx, args[0], retainDays)
				if details.AccountID != "" {
					out := cmd.OutOrStdout()
					fmt.Fprintln(out, details)
					if showAccessURL {
						fmt.Fprintln(out, details.AccessURL)
					}
				}
				return err
			})
		},
	}
	createCmd.Flags().IntVar(&retainDays, "retain-days", defaultRetainDays, "Days uploaded files are kept before automatic deletion")
	createCmd.Flags().BoolVar(&showAccessURL, "show-access-url", false, "Print the Backup API access-URL, password included")

	getCmd := &cobra.Command{
		Use:   "get <account-id>",
		Short: "Show a backup account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				man, err := a.managementAPI()
				if err != nil {
					return err
				}
				defer man.Close()

				details, err := man.GetBackupAccount(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, details)
				if showAccessURL {
					fmt.Fprintln(out, details.AccessURL)
				}
				return nil
			})
		},
	}
	getCmd.Flags().BoolVar(&showAccessURL, "show-access-url", false, "Print the Backup API access-URL, password included")

	deleteCmd := &cobra.Command{
		Use:   "delete <account-id>",
		Short: "Delete a backup account and all its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				man, err := a.managementAPI()
				if err != nil {
					return err
				}
				defer man.Close()

				text, err := man.DeleteBackupAccount(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(text))
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List backup accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				man, err := a.managementAPI()
				if err != nil {
					return err
				}
				defer man.Close()

				accounts, err := man.ListBackupAccounts(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, account := range accounts {
					fmt.Fprintln(out, account)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(createCmd, getCmd, deleteCmd, listCmd)
	return cmd
}

func newFileCmd(a *app) *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Upload, download and list files through the Backup API",
	}
	cmd.PersistentFlags().StringVar(&accountID, "account", "", "Account to use when no backup access-url is configured")

	putCmd := &cobra.Command{
		Use:   "put <local-path|-> [uri]",
		Short: "Upload a file, or stdin with \"-\"",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				body, size, closeBody, err := openUpload(cmd, args[0])
				if err != nil {
					return err
				}
				defer closeBody()

				uri := uploadURI(args)
				api, err := a.backupAPI(ctx, accountID)
				if err != nil {
					return err
				}
				defer api.Close()

				resp, err := api.Put(ctx, uri, body, size)
				if err != nil {
					return err
				}
				defer resp.Close()

				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s: %s\n", uri, resp.Status)
				return nil
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <uri> [local-path|-]",
		Short: "Download a file to a local path, or stdout by default",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				api, err := a.backupAPI(ctx, accountID)
				if err != nil {
					return err
				}
				defer api.Close()

				resp, err := api.Get(ctx, args[0])
				if err != nil {
					return err
				}
				defer resp.Close()

				target := "-"
				if len(args) == 2 {
					target = args[1]
				}
				return writeDownload(cmd, target, resp.Body)
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) error {
				api, err := a.backupAPI(ctx, accountID)
				if err != nil {
					return err
				}
				defer api.Close()

				files, err := api.List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, f := range files {
					fmt.Fprintln(out, f)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(putCmd, getCmd, listCmd)
	return cmd
}

// openUpload opens the upload source. Files report their size and can be
// rewound for retries; stdin is sent chunked and is not retried once sent.
func openUpload(cmd *cobra.Command, path string) (io.Reader, int64, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), -1, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, nil, fmt.Errorf("%s is a directory", path)
	}
	return f, info.Size(), func() { _ = f.Close() }, nil
}

// uploadURI returns the explicit uri argument, or one named after the local file.
func uploadURI(args []string) string {
	if len(args) == 2 {
		uri := args[1]
		if !strings.HasPrefix(uri, "/") {
			uri = "/" + uri
		}
		return uri
	}
	if args[0] == "-" {
		return "/stdin"
	}
	return "/" + filepath.Base(args[0])
}

// writeDownload copies body to target, or stdout when target is "-".
// A partially written file is removed.
func writeDownload(cmd *cobra.Command, target string, body io.Reader) error {
	if target == "-" {
		_, err := io.Copy(cmd.OutOrStdout(), body)
		return err
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	log.Infof("Downloaded %d bytes to %s", n, target)
	return nil
}
