package payments

const (
	TopicTransactionCreated  = "transaction.created"
	TopicTransactionSettled  = "transaction.settled"
	TopicTransactionRejected = "transaction.rejected"
)

// Partition key = transaction_id, supaya semua event 1 transaksi maintain urutan.
func PartitionKey(transactionID string) []byte { return []byte(transactionID) }
