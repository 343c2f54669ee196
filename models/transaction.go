package models

import "time"

const (
	StatusConfirmed   = "confirmed"
	StatusFailed      = "failed"
	StatusUnconfirmed = "unconfirmed"
)

type TransferInput struct {
	ReceiverAddress string `json:"receiverAddress"`
	Amount          Amount `json:"amount"`
	TransactionFee  Amount `json:"transactionFee"`
}

// TransferResult is returned once the transfer reached the node. Timestamp and TxStatus stay
// nil while the explorer has not indexed the transaction.
type TransferResult struct {
	SourceAddress      string     `json:"sourceAddress"`
	DestAddress        string     `json:"destAddress"`
	TransactionHash    string     `json:"txTransferHash"`
	FeeTransactionHash string     `json:"txFeeHash,omitempty"`
	Timestamp          *time.Time `json:"txTimestamp,omitempty"`
	TxStatus           *bool      `json:"txStatus,omitempty"`
	ConfirmationStatus string     `json:"confirmationStatus"`
	Amount             Amount     `json:"amount"`
	Fee                Amount     `json:"fee"`
}

type Recipient struct {
	ReceiverAddress string `json:"receiverAddress"`
	Amount          Amount `json:"amount"`
}

type MultiTransferInput struct {
	Recipients     []Recipient `json:"recipients"`
	TransactionFee Amount      `json:"transactionFee"`
}

type MultiTransferResult struct {
	SourceAddress      string      `json:"sourceAddress"`
	Recipients         []Recipient `json:"recipients"`
	TransactionHash    string      `json:"txTransferHash"`
	Timestamp          *time.Time  `json:"txTimestamp,omitempty"`
	TxStatus           *bool       `json:"txStatus,omitempty"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	TotalAmount        Amount      `json:"totalAmount"`
	TotalFee           Amount      `json:"totalFee"`
}

// TransactionRecord is a transaction as reported by the explorer.
type TransactionRecord struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       string    `json:"value"`
	BlockNumber uint64    `json:"blockNumber"`
	Timestamp   time.Time `json:"timestamp"`
	Status      bool      `json:"status"`
}

// TransferLog is one row of the transfer journal.
type TransferLog struct {
	ID        int64     `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	TxHash    string    `db:"tx_hash" json:"tx_hash"`
	FeeTxHash *string   `db:"fee_tx_hash" json:"fee_tx_hash,omitempty"`
	Source    string    `db:"source" json:"source"`
	Dest      string    `db:"dest" json:"dest"`
	Amount    string    `db:"amount" json:"amount"`
	Fee       string    `db:"fee" json:"fee"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type SetFeeInput struct {
	Fee Amount `json:"fee"`
}
