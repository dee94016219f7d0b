package models

import "github.com/fjacquet/restbackup/internal/testutil"

// Shared test constants, aliased from testutil
const (
	testManagementAccessURL = testutil.TestManagementAccessURL
	testBackupAccessURL     = testutil.TestBackupAccessURL
	testAccountID           = testutil.TestAccountID
	testOTELEndpoint        = testutil.TestOTELEndpoint

	testErrorExpectedError = testutil.TestErrorExpectedError
	testErrorUnexpected    = testutil.TestErrorUnexpected
)
