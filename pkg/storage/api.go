package storage

// ApiStore defines the read-only operations needed by the public API.
// It composes other interfaces to provide a clear boundary for the API's data access.
type ApiStore interface {
	AccountReader
	TransactionReader
	HistoryReader
}

// PurchaseStore is what the purchase initiator needs: account linkage and pending transaction creation.
type PurchaseStore interface {
	AccountStore
	TransactionManager
}
