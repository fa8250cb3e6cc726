package shared

import "fmt"

// TransactionLockKey builds redis keys guarding explain critical sections.
func TransactionLockKey(transactionID int64) string {
	return fmt.Sprintf("reconcile:txn:%d:lock", transactionID)
}
