package rosetta

// Request/response bodies of the Data and Construction endpoints.

type MetadataRequest struct {
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type NetworkRequest struct {
	NetworkIdentifier NetworkIdentifier      `json:"network_identifier"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

type NetworkListResponse struct {
	NetworkIdentifiers []NetworkIdentifier `json:"network_identifiers"`
}

type NetworkStatusResponse struct {
	CurrentBlockIdentifier BlockIdentifier  `json:"current_block_identifier"`
	CurrentBlockTimestamp  int64            `json:"current_block_timestamp"`
	GenesisBlockIdentifier BlockIdentifier  `json:"genesis_block_identifier"`
	OldestBlockIdentifier  *BlockIdentifier `json:"oldest_block_identifier,omitempty"`
	SyncStatus             *SyncStatus      `json:"sync_status,omitempty"`
}

type NetworkOptionsResponse struct {
	Version Version `json:"version"`
	Allow   Allow   `json:"allow"`
}

type BlockRequest struct {
	NetworkIdentifier NetworkIdentifier      `json:"network_identifier"`
	BlockIdentifier   PartialBlockIdentifier `json:"block_identifier"`
}

type BlockResponse struct {
	Block *Block `json:"block,omitempty"`
}

type BlockTransactionRequest struct {
	NetworkIdentifier     NetworkIdentifier     `json:"network_identifier"`
	BlockIdentifier       BlockIdentifier       `json:"block_identifier"`
	TransactionIdentifier TransactionIdentifier `json:"transaction_identifier"`
}

type BlockTransactionResponse struct {
	Transaction Transaction `json:"transaction"`
}

type AccountBalanceRequest struct {
	NetworkIdentifier NetworkIdentifier       `json:"network_identifier"`
	AccountIdentifier AccountIdentifier       `json:"account_identifier"`
	BlockIdentifier   *PartialBlockIdentifier `json:"block_identifier,omitempty"`
}

type AccountBalanceResponse struct {
	BlockIdentifier BlockIdentifier `json:"block_identifier"`
	Balances        []Amount        `json:"balances"`
}

type SearchTransactionsRequest struct {
	NetworkIdentifier NetworkIdentifier  `json:"network_identifier"`
	AccountIdentifier *AccountIdentifier `json:"account_identifier,omitempty"`
	Type              *string            `json:"type,omitempty"`
	MinBlock          *int64             `json:"min_block,omitempty"`
	MaxBlock          *int64             `json:"max_block,omitempty"`
	Offset            *int64             `json:"offset,omitempty"`
	Limit             *int64             `json:"limit,omitempty"`
}

type SearchTransactionsResponse struct {
	Transactions []BlockTransaction `json:"transactions"`
	TotalCount   int64              `json:"total_count"`
	NextOffset   *int64             `json:"next_offset,omitempty"`
}

type ConstructionDeriveRequest struct {
	NetworkIdentifier NetworkIdentifier      `json:"network_identifier"`
	PublicKey         PublicKey              `json:"public_key"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

type ConstructionDeriveResponse struct {
	AccountIdentifier *AccountIdentifier     `json:"account_identifier,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

type ConstructionPreprocessRequest struct {
	NetworkIdentifier NetworkIdentifier      `json:"network_identifier"`
	Operations        []Operation            `json:"operations"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

type ConstructionPreprocessResponse struct {
	Options map[string]interface{} `json:"options,omitempty"`
}

type ConstructionMetadataRequest struct {
	NetworkIdentifier NetworkIdentifier      `json:"network_identifier"`
	Options           map[string]interface{} `json:"options,omitempty"`
}

type ConstructionMetadataResponse struct {
	Metadata     map[string]interface{} `json:"metadata"`
	SuggestedFee []Amount               `json:"suggested_fee,omitempty"`
}

type ConstructionPayloadsRequest struct {
	NetworkIdentifier NetworkIdentifier      `json:"network_identifier"`
	Operations        []Operation            `json:"operations"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	PublicKeys        []PublicKey            `json:"public_keys,omitempty"`
}

type ConstructionPayloadsResponse struct {
	UnsignedTransaction string           `json:"unsigned_transaction"`
	Payloads            []SigningPayload `json:"payloads"`
}

type ConstructionCombineRequest struct {
	NetworkIdentifier   NetworkIdentifier `json:"network_identifier"`
	UnsignedTransaction string            `json:"unsigned_transaction"`
	Signatures          []Signature       `json:"signatures"`
}

type ConstructionCombineResponse struct {
	SignedTransaction string `json:"signed_transaction"`
}

type ConstructionParseRequest struct {
	NetworkIdentifier NetworkIdentifier `json:"network_identifier"`
	Signed            bool              `json:"signed"`
	Transaction       string            `json:"transaction"`
}

type ConstructionParseResponse struct {
	Operations               []Operation            `json:"operations"`
	AccountIdentifierSigners []AccountIdentifier    `json:"account_identifier_signers,omitempty"`
	Metadata                 map[string]interface{} `json:"metadata,omitempty"`
}

type ConstructionHashRequest struct {
	NetworkIdentifier NetworkIdentifier `json:"network_identifier"`
	SignedTransaction string            `json:"signed_transaction"`
}

type ConstructionSubmitRequest struct {
	NetworkIdentifier NetworkIdentifier `json:"network_identifier"`
	SignedTransaction string            `json:"signed_transaction"`
}

type TransactionIdentifierResponse struct {
	TransactionIdentifier TransactionIdentifier  `json:"transaction_identifier"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
}
