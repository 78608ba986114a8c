package erp

// SyncStatus tracks whether a record reached the external system.
type SyncStatus string

const (
	SyncNotSynced SyncStatus = "Not Synced"
	SyncSynced    SyncStatus = "Synced"
	SyncFailed    SyncStatus = "Sync Failed"
)

// Outcome maps a push result to the status recorded on the record.
func Outcome(err error) SyncStatus {
	if err != nil {
		return SyncFailed
	}
	return SyncSynced
}
