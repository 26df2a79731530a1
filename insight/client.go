// Package insight is a client for the Insight block explorer REST API used
// to look up unspent outputs and previous transactions and to broadcast
// finished transactions.
package insight

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ErrTxMismatch is returned when a fetched raw transaction does not hash to
// the requested txid.
var ErrTxMismatch = errors.New("fetched transaction does not match txid")

// StatusError is returned for any response with a non-2xx status code.
type StatusError struct {
	Code int
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("insight API returned status %d: %s", e.Code,
		strings.TrimSpace(e.Body))
}

// ClientConfig holds the configuration for the Insight client.
type ClientConfig struct {
	// URL is the base URL of the API, e.g.
	// https://testnet.ghostscan.io/ghost-insight-api.
	URL string

	// RequestTimeout is the timeout for individual HTTP requests. Zero
	// means no timeout beyond the request context.
	RequestTimeout time.Duration
}

// Unspent is an unspent output as listed by /addr/{address}/utxo.
type Unspent struct {
	Address       string  `json:"address"`
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Amount        float64 `json:"amount"`
	Satoshis      int64   `json:"satoshis"`
	Height        int64   `json:"height"`
	Confirmations int64   `json:"confirmations"`
}

// Balance is the summary returned by /addr/{address}.
type Balance struct {
	Address                 string   `json:"addrStr"`
	Balance                 float64  `json:"balance"`
	BalanceSat              int64    `json:"balanceSat"`
	TotalReceivedSat        int64    `json:"totalReceivedSat"`
	TotalSentSat            int64    `json:"totalSentSat"`
	UnconfirmedBalanceSat   int64    `json:"unconfirmedBalanceSat"`
	TxApperances            int64    `json:"txApperances"`
	UnconfirmedTxApperances int64    `json:"unconfirmedTxApperances"`
	Transactions            []string `json:"transactions"`
}

// TxInfo is the decoded transaction returned by /tx/{txid}.
type TxInfo struct {
	TxID          string   `json:"txid"`
	Version       int32    `json:"version"`
	LockTime      uint32   `json:"locktime"`
	BlockHash     string   `json:"blockhash"`
	BlockHeight   int64    `json:"blockheight"`
	Confirmations int64    `json:"confirmations"`
	Time          int64    `json:"time"`
	Size          int      `json:"size"`
	ValueIn       float64  `json:"valueIn"`
	ValueOut      float64  `json:"valueOut"`
	Fees          float64  `json:"fees"`
	Vin           []TxVin  `json:"vin"`
	Vout          []TxVout `json:"vout"`
}

// TxVin is one input of a TxInfo.
type TxVin struct {
	TxID     string  `json:"txid"`
	Vout     uint32  `json:"vout"`
	Sequence uint32  `json:"sequence"`
	Address  string  `json:"addr"`
	ValueSat int64   `json:"valueSat"`
	Value    float64 `json:"value"`
}

// TxVout is one output of a TxInfo.
type TxVout struct {
	Value        string `json:"value"`
	N            uint32 `json:"n"`
	ScriptPubKey struct {
		Hex       string   `json:"hex"`
		Asm       string   `json:"asm"`
		Addresses []string `json:"addresses"`
		Type      string   `json:"type"`
	} `json:"scriptPubKey"`
}

type rawTx struct {
	RawTx string `json:"rawtx"`
}

type sendResult struct {
	TxID string `json:"txid"`
}

// Client is an HTTP client for the Insight REST API. It does not retry.
type Client struct {
	cfg        *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new Insight client with the given configuration.
func NewClient(cfg *ClientConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// FetchTx returns the explorer's decoded view of a transaction.
func (c *Client) FetchTx(ctx context.Context, txid string) (*TxInfo, error) {
	var info TxInfo
	if err := c.getJSON(ctx, "/tx/"+url.PathEscape(txid), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// FetchRawTx returns the full transaction with the given id. The result is
// checked to hash to txid.
func (c *Client) FetchRawTx(ctx context.Context, txid string) (*wire.MsgTx,
	error) {

	want, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, err
	}

	var raw rawTx
	err = c.getJSON(ctx, "/rawtx/"+url.PathEscape(txid), &raw)
	if err != nil {
		return nil, err
	}

	txBytes, err := hex.DecodeString(raw.RawTx)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tx hex: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return nil, fmt.Errorf("failed to deserialize tx: %w", err)
	}

	if got := tx.TxHash(); got != *want {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrTxMismatch,
			got, want)
	}

	return tx, nil
}

// FetchUnspents lists the unspent outputs paying to address.
func (c *Client) FetchUnspents(ctx context.Context, address string) (
	[]*Unspent, error) {

	var unspents []*Unspent
	path := "/addr/" + url.PathEscape(address) + "/utxo"
	if err := c.getJSON(ctx, path, &unspents); err != nil {
		return nil, err
	}

	log.Debugf("Found %d unspent outputs for %s", len(unspents), address)

	return unspents, nil
}

// FetchBalance returns the balance summary of address.
func (c *Client) FetchBalance(ctx context.Context, address string) (*Balance,
	error) {

	var balance Balance
	err := c.getJSON(ctx, "/addr/"+url.PathEscape(address), &balance)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// Broadcast submits a signed transaction and returns the txid reported by
// the explorer.
func (c *Client) Broadcast(ctx context.Context, tx *wire.MsgTx) (string,
	error) {

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize tx: %w", err)
	}

	body, err := json.Marshal(rawTx{RawTx: hex.EncodeToString(buf.Bytes())})
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, "/tx/send", body)
	if err != nil {
		return "", err
	}

	var result sendResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	log.Infof("Broadcast transaction %s", result.TxID)

	return result.TxID, nil
}

// getJSON performs a GET request and decodes the JSON response into v.
func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do performs one HTTP request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string,
	payload []byte) ([]byte, error) {

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	endpoint := strings.TrimRight(c.cfg.URL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Tracef("%s %s", method, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Code: resp.StatusCode,
			Body: string(respBody),
		}
	}

	return respBody, nil
}
