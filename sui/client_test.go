package sui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/errs"
)

// fakeNode answers JSON-RPC calls from a per-method handler and records them.
type fakeNode struct {
	mu       sync.Mutex
	calls    []string
	handlers map[string]func(params []json.RawMessage) (any, *RPCError, int)
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	f := &fakeNode{handlers: map[string]func([]json.RawMessage) (any, *RPCError, int){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.calls = append(f.calls, req.Method)
		h := f.handlers[req.Method]
		f.mu.Unlock()
		if h == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		result, rpcErr, status := h(req.Params)
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeNode) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func testClient(url string) *Client {
	return NewClient(url, WithTimeout(2*time.Second), WithReadRetries(2), WithRetryBackoff(time.Millisecond))
}

func TestReferenceGasPriceDecodesString(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handlers["suix_getReferenceGasPrice"] = func([]json.RawMessage) (any, *RPCError, int) {
		return "750", nil, 0
	}
	price, err := testClient(srv.URL).ReferenceGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(750), price)
}

func TestReadsRetryOnServerErrors(t *testing.T) {
	node, srv := newFakeNode(t)
	attempts := 0
	node.handlers["suix_getReferenceGasPrice"] = func([]json.RawMessage) (any, *RPCError, int) {
		attempts++
		if attempts < 3 {
			return nil, nil, http.StatusServiceUnavailable
		}
		return "1000", nil, 0
	}
	price, err := testClient(srv.URL).ReferenceGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), price)
	assert.Equal(t, 3, node.count("suix_getReferenceGasPrice"))
}

func TestReadsDoNotRetryRPCErrors(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handlers["sui_getObject"] = func([]json.RawMessage) (any, *RPCError, int) {
		return nil, &RPCError{Code: -32602, Message: "invalid params"}, 0
	}
	_, err := testClient(srv.URL).Object(context.Background(), MustParseAddress("0x1"))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindChain))
	assert.Equal(t, 1, node.count("sui_getObject"))
}

func TestExecuteIsNeverRetried(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handlers["sui_executeTransactionBlock"] = func([]json.RawMessage) (any, *RPCError, int) {
		return nil, nil, http.StatusBadGateway
	}
	_, err := testClient(srv.URL).ExecuteTransactionBlock(context.Background(), []byte{1}, []string{"sig"}, ExecuteOptions{ShowEvents: true}, "")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindTransport))
	assert.Equal(t, 1, node.count("sui_executeTransactionBlock"))
}

func TestExecuteSendsBase64AndDecodesResponse(t *testing.T) {
	node, srv := newFakeNode(t)
	var got []json.RawMessage
	node.handlers["sui_executeTransactionBlock"] = func(params []json.RawMessage) (any, *RPCError, int) {
		got = params
		return json.RawMessage(`{
			"digest": "9xq",
			"effects": {"status": {"status": "success"}, "gasUsed": {"computationCost": "1000", "storageCost": "500", "storageRebate": "200"}},
			"events": [{"packageId": "0x1", "transactionModule": "model", "sender": "0x2", "type": "0x1::model::PredictionCompleted", "parsedJson": {"argmax_idx": "1"}}]
		}`), nil, 0
	}
	resp, err := testClient(srv.URL).ExecuteTransactionBlock(context.Background(), []byte{1, 2, 3}, []string{"c2ln"},
		ExecuteOptions{ShowEffects: true, ShowEvents: true}, WaitForLocalExecution)
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.JSONEq(t, `"AQID"`, string(got[0]))
	assert.JSONEq(t, `["c2ln"]`, string(got[1]))
	assert.JSONEq(t, `{"showEffects":true,"showEvents":true}`, string(got[2]))
	assert.JSONEq(t, `"WaitForLocalExecution"`, string(got[3]))

	assert.Equal(t, "9xq", resp.Digest)
	require.NotNil(t, resp.Effects)
	assert.True(t, resp.Effects.Status.Succeeded())
	assert.Equal(t, uint64(1300), resp.Effects.GasUsed.Total())
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "0x1::model::PredictionCompleted", resp.Events[0].Type)
}

func coinJSON(id string, balance string) map[string]any {
	var d Digest
	d[0] = 1
	return map[string]any{
		"coinType":     SuiCoinType,
		"coinObjectId": id,
		"version":      "3",
		"digest":       d.String(),
		"balance":      balance,
	}
}

func TestSelectGasPagesAndPicksLargestFirst(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handlers["suix_getCoins"] = func(params []json.RawMessage) (any, *RPCError, int) {
		if string(params[2]) == "null" {
			return map[string]any{
				"data":        []any{coinJSON("0xa", "100"), coinJSON("0xb", "2000000000")},
				"nextCursor":  "page2",
				"hasNextPage": true,
			}, nil, 0
		}
		return map[string]any{
			"data":        []any{coinJSON("0xc", "1500000000")},
			"nextCursor":  nil,
			"hasNextPage": false,
		}, nil, 0
	}
	c := testClient(srv.URL)
	owner := MustParseAddress("0x99")

	refs, err := SelectGas(context.Background(), c, owner, 3_000_000_000, nil)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, MustParseAddress("0xb"), refs[0].ObjectID)
	assert.Equal(t, MustParseAddress("0xc"), refs[1].ObjectID)
	assert.Equal(t, uint64(3), refs[0].Version)

	_, err = SelectGas(context.Background(), c, owner, 5_000_000_000, nil)
	assert.Equal(t, errs.CodeInsufficientGas, errs.CodeOf(err))

	_, err = SelectGas(context.Background(), c, owner, 1_000_000_000, map[ObjectID]bool{
		MustParseAddress("0xb"): true, MustParseAddress("0xc"): true,
	})
	assert.Equal(t, errs.CodeInsufficientGas, errs.CodeOf(err))
}

func TestObjectMissingData(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handlers["sui_getObject"] = func([]json.RawMessage) (any, *RPCError, int) {
		return map[string]any{"error": map[string]any{"code": "notExists"}}, nil, 0
	}
	_, err := testClient(srv.URL).Object(context.Background(), MustParseAddress("0x1"))
	assert.True(t, errs.IsKind(err, errs.KindChain))
}
