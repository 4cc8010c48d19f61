package rosetta

// Standard Rosetta identifier and object types. Amounts travel as
// decimal-string integers, timestamps as unix milliseconds.

type NetworkIdentifier struct {
	Blockchain string `json:"blockchain"`
	Network    string `json:"network"`
}

type BlockIdentifier struct {
	Index int64  `json:"index"`
	Hash  string `json:"hash"`
}

type PartialBlockIdentifier struct {
	Index *int64  `json:"index,omitempty"`
	Hash  *string `json:"hash,omitempty"`
}

type SubAccountIdentifier struct {
	Address string `json:"address"`
}

type AccountIdentifier struct {
	Address    string                `json:"address"`
	SubAccount *SubAccountIdentifier `json:"sub_account,omitempty"`
}

type Currency struct {
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

type Amount struct {
	Value    string   `json:"value"`
	Currency Currency `json:"currency"`
}

type OperationIdentifier struct {
	Index int64 `json:"index"`
}

type Operation struct {
	OperationIdentifier OperationIdentifier    `json:"operation_identifier"`
	Type                string                 `json:"type"`
	Status              *string                `json:"status,omitempty"`
	Account             *AccountIdentifier     `json:"account,omitempty"`
	Amount              *Amount                `json:"amount,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

type TransactionIdentifier struct {
	Hash string `json:"hash"`
}

type Transaction struct {
	TransactionIdentifier TransactionIdentifier  `json:"transaction_identifier"`
	Operations            []Operation            `json:"operations"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
}

type Block struct {
	BlockIdentifier       BlockIdentifier        `json:"block_identifier"`
	ParentBlockIdentifier BlockIdentifier        `json:"parent_block_identifier"`
	Timestamp             int64                  `json:"timestamp"` // unix millis
	Transactions          []Transaction          `json:"transactions"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
}

type BlockTransaction struct {
	BlockIdentifier BlockIdentifier `json:"block_identifier"`
	Transaction     Transaction     `json:"transaction"`
}

type PublicKey struct {
	HexBytes  string `json:"hex_bytes"`
	CurveType string `json:"curve_type"`
}

type SigningPayload struct {
	AccountIdentifier *AccountIdentifier `json:"account_identifier,omitempty"`
	HexBytes          string             `json:"hex_bytes"`
	SignatureType     string             `json:"signature_type,omitempty"`
}

type Signature struct {
	SigningPayload SigningPayload `json:"signing_payload"`
	PublicKey      PublicKey      `json:"public_key"`
	SignatureType  string         `json:"signature_type"`
	HexBytes       string         `json:"hex_bytes"`
}

type SyncStatus struct {
	CurrentIndex *int64 `json:"current_index,omitempty"`
	TargetIndex  *int64 `json:"target_index,omitempty"`
	Stage        string `json:"stage"`
	Synced       bool   `json:"synced"`
}

type Version struct {
	RosettaVersion string `json:"rosetta_version"`
	NodeVersion    string `json:"node_version"`
}

type OperationStatus struct {
	Status     string `json:"status"`
	Successful bool   `json:"successful"`
}

type Allow struct {
	OperationStatuses       []OperationStatus `json:"operation_statuses"`
	OperationTypes          []string          `json:"operation_types"`
	Errors                  []*Error          `json:"errors"`
	HistoricalBalanceLookup bool              `json:"historical_balance_lookup"`
}
