package storage

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError is deferred after BeginTx; a rollback after a successful
// commit returns sql.ErrTxDone, which is ignored.
func rollbackWithError(rb interface{ Rollback() error }, committed *bool, err *error) {
	if *committed {
		return
	}
	if rErr := rb.Rollback(); rErr != nil && *err == nil {
		*err = rErr
	}
}
