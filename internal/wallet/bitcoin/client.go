// Package bitcoin signs and broadcasts legacy P2PKH transactions. Chain
// state comes from an esplora-compatible HTTP index (blockstream.info by
// default).
package bitcoin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/defisafe/hotwallet/internal/errs"
)

// UTXO is one spendable output as reported by the index.
type UTXO struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status struct {
		Confirmed bool `json:"confirmed"`
	} `json:"status"`
}

// Client talks to an esplora-compatible chain index.
type Client interface {
	// GetAddressUTXOs returns the confirmed spendable outputs of address.
	GetAddressUTXOs(ctx context.Context, address string) ([]UTXO, error)

	// RecommendedFeeRate returns a next-block fee rate in sat/vB.
	RecommendedFeeRate(ctx context.Context) (int64, error)

	// BroadcastTransaction submits a raw transaction hex and returns the
	// txid assigned by the index.
	BroadcastTransaction(ctx context.Context, rawHex string) (string, error)

	// GetBalance returns the confirmed balance of address in satoshis.
	GetBalance(ctx context.Context, address string) (int64, error)
}

type client struct {
	baseURL     string
	httpClient  *http.Client
	feeFallback int64
}

// NewClient creates an esplora client. feeFallback is used when the fee
// estimate endpoint is unavailable.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewClient(baseURL string, feeFallback int64, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		feeFallback: feeFallback,
	}
}

func (c *client) GetAddressUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var utxos []UTXO
	if err := c.getJSON(ctx, fmt.Sprintf("/address/%s/utxo", address), &utxos); err != nil {
		return nil, err
	}

	confirmed := utxos[:0]
	for _, u := range utxos {
		if u.Status.Confirmed {
			confirmed = append(confirmed, u)
		}
	}

	return confirmed, nil
}

func (c *client) RecommendedFeeRate(ctx context.Context) (int64, error) {
	// Esplora keys the estimate map by confirmation target in blocks.
	var estimates map[string]float64
	if err := c.getJSON(ctx, "/fee-estimates", &estimates); err != nil {
		return c.feeFallback, nil
	}

	rate, ok := estimates["1"]
	if !ok || rate < 1 {
		return c.feeFallback, nil
	}

	return int64(rate), nil
}

func (c *client) BroadcastTransaction(ctx context.Context, rawHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx", strings.NewReader(rawHex))
	if err != nil {
		return "", errs.Networkf("build broadcast request: %v", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.Networkf("broadcast transaction: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", errs.Networkf("read broadcast response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", errs.Networkf("broadcast rejected: %s", strings.TrimSpace(string(body)))
	}

	return strings.TrimSpace(string(body)), nil
}

func (c *client) GetBalance(ctx context.Context, address string) (int64, error) {
	utxos, err := c.GetAddressUTXOs(ctx, address)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, u := range utxos {
		total += u.Value
	}

	return total, nil
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errs.Networkf("build request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Networkf("fetch %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return errs.Networkf("fetch %s: status %d", path, resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, 1<<20)); err != nil {
		return errs.Networkf("read %s response: %v", path, err)
	}

	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return errs.Networkf("decode %s response: %v", path, err)
	}

	return nil
}
