package bank

const (
	operationReserve  = "reserve"
	operationCommit   = "commit"
	operationRollback = "rollback"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorOperationManager = "manager"
	errorSubjectAccount   = "account"
	errorSubjectReserve   = "reserve"
	errorCodeNotFound     = "not_found"
	errorCodeNotUnique    = "not_unique"
	errorCodeHandled      = "already_handled"
)
