package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"rosettagw/jsonx"
	"rosettagw/rosetta"
)

// Client is a typed Go client for the gateway's Rosetta API. Errors returned
// by the gateway surface as *rosetta.Error, so callers can branch on codes
// and the retriable flag.
type Client struct {
	endpoint string
	network  rosetta.NetworkIdentifier
	hc       *http.Client
}

func New(endpoint string, network rosetta.NetworkIdentifier) *Client {
	return &Client{
		endpoint: endpoint,
		network:  network,
		hc:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) post(ctx context.Context, path string, req, res interface{}) error {
	body, err := jsonx.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var rerr rosetta.Error
		if jsonx.Unmarshal(data, &rerr) == nil && rerr.Code != 0 {
			return &rerr
		}
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	return jsonx.Unmarshal(data, res)
}

func (c *Client) NetworkList(ctx context.Context) (*rosetta.NetworkListResponse, error) {
	var res rosetta.NetworkListResponse
	err := c.post(ctx, "/network/list", &rosetta.MetadataRequest{}, &res)
	return &res, err
}

func (c *Client) NetworkStatus(ctx context.Context) (*rosetta.NetworkStatusResponse, error) {
	var res rosetta.NetworkStatusResponse
	err := c.post(ctx, "/network/status", &rosetta.NetworkRequest{NetworkIdentifier: c.network}, &res)
	return &res, err
}

func (c *Client) NetworkOptions(ctx context.Context) (*rosetta.NetworkOptionsResponse, error) {
	var res rosetta.NetworkOptionsResponse
	err := c.post(ctx, "/network/options", &rosetta.NetworkRequest{NetworkIdentifier: c.network}, &res)
	return &res, err
}

func (c *Client) Block(ctx context.Context, id rosetta.PartialBlockIdentifier) (*rosetta.BlockResponse, error) {
	var res rosetta.BlockResponse
	err := c.post(ctx, "/block", &rosetta.BlockRequest{
		NetworkIdentifier: c.network,
		BlockIdentifier:   id,
	}, &res)
	return &res, err
}

func (c *Client) BlockTransaction(ctx context.Context, blockID rosetta.BlockIdentifier, txHash string) (*rosetta.BlockTransactionResponse, error) {
	var res rosetta.BlockTransactionResponse
	err := c.post(ctx, "/block/transaction", &rosetta.BlockTransactionRequest{
		NetworkIdentifier:     c.network,
		BlockIdentifier:       blockID,
		TransactionIdentifier: rosetta.TransactionIdentifier{Hash: txHash},
	}, &res)
	return &res, err
}

func (c *Client) AccountBalance(ctx context.Context, account rosetta.AccountIdentifier, at *rosetta.PartialBlockIdentifier) (*rosetta.AccountBalanceResponse, error) {
	var res rosetta.AccountBalanceResponse
	err := c.post(ctx, "/account/balance", &rosetta.AccountBalanceRequest{
		NetworkIdentifier: c.network,
		AccountIdentifier: account,
		BlockIdentifier:   at,
	}, &res)
	return &res, err
}

func (c *Client) SearchTransactions(ctx context.Context, req rosetta.SearchTransactionsRequest) (*rosetta.SearchTransactionsResponse, error) {
	req.NetworkIdentifier = c.network
	var res rosetta.SearchTransactionsResponse
	err := c.post(ctx, "/search/transactions", &req, &res)
	return &res, err
}

func (c *Client) Derive(ctx context.Context, pub rosetta.PublicKey) (*rosetta.ConstructionDeriveResponse, error) {
	var res rosetta.ConstructionDeriveResponse
	err := c.post(ctx, "/construction/derive", &rosetta.ConstructionDeriveRequest{
		NetworkIdentifier: c.network,
		PublicKey:         pub,
	}, &res)
	return &res, err
}

func (c *Client) Preprocess(ctx context.Context, ops []rosetta.Operation) (*rosetta.ConstructionPreprocessResponse, error) {
	var res rosetta.ConstructionPreprocessResponse
	err := c.post(ctx, "/construction/preprocess", &rosetta.ConstructionPreprocessRequest{
		NetworkIdentifier: c.network,
		Operations:        ops,
	}, &res)
	return &res, err
}

func (c *Client) Metadata(ctx context.Context, options map[string]interface{}) (*rosetta.ConstructionMetadataResponse, error) {
	var res rosetta.ConstructionMetadataResponse
	err := c.post(ctx, "/construction/metadata", &rosetta.ConstructionMetadataRequest{
		NetworkIdentifier: c.network,
		Options:           options,
	}, &res)
	return &res, err
}

func (c *Client) Payloads(ctx context.Context, ops []rosetta.Operation, metadata map[string]interface{}) (*rosetta.ConstructionPayloadsResponse, error) {
	var res rosetta.ConstructionPayloadsResponse
	err := c.post(ctx, "/construction/payloads", &rosetta.ConstructionPayloadsRequest{
		NetworkIdentifier: c.network,
		Operations:        ops,
		Metadata:          metadata,
	}, &res)
	return &res, err
}

func (c *Client) Combine(ctx context.Context, unsigned string, sigs []rosetta.Signature) (*rosetta.ConstructionCombineResponse, error) {
	var res rosetta.ConstructionCombineResponse
	err := c.post(ctx, "/construction/combine", &rosetta.ConstructionCombineRequest{
		NetworkIdentifier:   c.network,
		UnsignedTransaction: unsigned,
		Signatures:          sigs,
	}, &res)
	return &res, err
}

func (c *Client) Parse(ctx context.Context, signed bool, transaction string) (*rosetta.ConstructionParseResponse, error) {
	var res rosetta.ConstructionParseResponse
	err := c.post(ctx, "/construction/parse", &rosetta.ConstructionParseRequest{
		NetworkIdentifier: c.network,
		Signed:            signed,
		Transaction:       transaction,
	}, &res)
	return &res, err
}

func (c *Client) Hash(ctx context.Context, signedTx string) (*rosetta.TransactionIdentifierResponse, error) {
	var res rosetta.TransactionIdentifierResponse
	err := c.post(ctx, "/construction/hash", &rosetta.ConstructionHashRequest{
		NetworkIdentifier: c.network,
		SignedTransaction: signedTx,
	}, &res)
	return &res, err
}

func (c *Client) Submit(ctx context.Context, signedTx string) (*rosetta.TransactionIdentifierResponse, error) {
	var res rosetta.TransactionIdentifierResponse
	err := c.post(ctx, "/construction/submit", &rosetta.ConstructionSubmitRequest{
		NetworkIdentifier: c.network,
		SignedTransaction: signedTx,
	}, &res)
	return &res, err
}
