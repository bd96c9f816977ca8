package wallet_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defisafe/hotwallet/internal/config"
	"github.com/defisafe/hotwallet/internal/errs"
	"github.com/defisafe/hotwallet/internal/wallet"
)

type rpcCall struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeEthNode is a minimal JSON-RPC endpoint serving the three methods a
// send needs. It records the nonce of every broadcast it receives and can
// reject the first broadcast to simulate a node-side failure.
type fakeEthNode struct {
	mu        sync.Mutex
	pending   uint64
	failFirst bool
	failed    bool
	nonces    []uint64
}

func (n *fakeEthNode) broadcastNonces() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]uint64(nil), n.nonces...)
}

func (n *fakeEthNode) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		reply := func(result string) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(call.ID) + `,"result":` + result + `}`))
		}

		switch call.Method {
		case "eth_getTransactionCount":
			n.mu.Lock()
			pending := n.pending
			n.mu.Unlock()
			reply(`"0x` + strconv.FormatUint(pending, 16) + `"`)
		case "eth_gasPrice":
			reply(`"0x3b9aca00"`)
		case "eth_sendRawTransaction":
			var rawHex string
			if err := json.Unmarshal(call.Params[0], &rawHex); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			tx := new(types.Transaction)
			if err := tx.UnmarshalBinary(common.FromHex(rawHex)); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			n.mu.Lock()
			n.nonces = append(n.nonces, tx.Nonce())
			reject := n.failFirst && !n.failed
			if reject {
				n.failed = true
			}
			n.mu.Unlock()

			if reject {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(call.ID) + `,"error":{"code":-32000,"message":"transaction underpriced"}}`))
				return
			}
			reply(`"` + tx.Hash().Hex() + `"`)
		default:
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(call.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
		}
	}
}

func TestSendTransactionRetriesWithChainNonce(t *testing.T) {
	ctx := context.Background()

	node := &fakeEthNode{pending: 5, failFirst: true}
	srv := httptest.NewServer(node.handler())
	defer srv.Close()

	svc, backend := newTestServiceWithBackend(t, config.Service{
		RPCEndpoints: map[string]string{"eth": srv.URL},
		RPCTimeout:   5 * time.Second,
	})

	_, rec, err := svc.CreateWallet(ctx, "w1", testPassword, wallet.CreateOptions{})
	require.NoError(t, err)

	to := "0x1111111111111111111111111111111111111111"

	_, err = svc.SendTransaction(ctx, "w1", testPassword, "eth", to, "0.001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNetwork))

	hash, err := svc.SendTransaction(ctx, "w1", testPassword, "eth", to, "0.001")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Both attempts carry the node's pending count: a failed broadcast
	// never leaves the retry signed one nonce ahead of the chain.
	assert.Equal(t, []uint64{5, 5}, node.broadcastNonces())

	// The persisted sequence counter has moved past the consumed nonce.
	next, err := backend.ReserveNonce(ctx, "eth", rec.Addresses["eth"], 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, next, uint64(6))
}
