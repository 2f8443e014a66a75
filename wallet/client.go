package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bitcr-wallet/pocket/cashu"
	"github.com/bitcr-wallet/pocket/cashu/nuts/nut01"
	"github.com/bitcr-wallet/pocket/cashu/nuts/nut02"
	"github.com/bitcr-wallet/pocket/cashu/nuts/nut03"
	"github.com/bitcr-wallet/pocket/cashu/nuts/nut06"
	"github.com/bitcr-wallet/pocket/cashu/nuts/nut07"
	"github.com/bitcr-wallet/pocket/cashu/nuts/nut09"
	"github.com/bitcr-wallet/pocket/crypto"
	"github.com/bitcr-wallet/pocket/pocket"
)

// Client is the HTTP binding of pocket.MintClient against one mint's NUT
// REST surface. It holds no proof state of its own — every call is one
// round trip, same as the free functions it replaces.
type Client struct {
	mintURL string
	http    *http.Client
}

func NewClient(mintURL string) *Client {
	return &Client{mintURL: mintURL, http: http.DefaultClient}
}

func (c *Client) MintURL() string { return c.mintURL }

func (c *Client) GetInfo(ctx context.Context) (*nut06.MintInfo, error) {
	body, err := c.get(ctx, "/v1/info")
	if err != nil {
		return nil, err
	}
	var info nut06.MintInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %w", err)
	}
	return &info, nil
}

func (c *Client) GetKeysets(ctx context.Context) ([]pocket.KeysetInfo, error) {
	body, err := c.get(ctx, "/v1/keysets")
	if err != nil {
		return nil, err
	}
	var res nut02.GetKeysetsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %w", err)
	}

	infos := make([]pocket.KeysetInfo, len(res.Keysets))
	for i, ks := range res.Keysets {
		infos[i] = pocket.KeysetInfo{
			Id:          ks.Id,
			Unit:        ks.Unit,
			Active:      ks.Active,
			FinalExpiry: ks.FinalExpiry,
			InputFeePpk: uint32(ks.InputFeePpk),
		}
	}
	return infos, nil
}

func (c *Client) GetKeyset(ctx context.Context, id string) (crypto.PublicKeys, error) {
	body, err := c.get(ctx, "/v1/keys/"+id)
	if err != nil {
		return nil, err
	}
	var res nut01.GetKeysResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %w", err)
	}
	if len(res.Keysets) == 0 {
		return nil, &pocket.UnknownKeysetIdError{KeysetId: id}
	}
	keys := res.Keysets[0].Keys
	if derived := crypto.DeriveKeysetId(keys); derived != id {
		return nil, fmt.Errorf("mint returned invalid keyset: derived id %q does not match requested %q", derived, id)
	}
	return keys, nil
}

func (c *Client) Swap(ctx context.Context, inputs cashu.Proofs, outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	req := nut03.PostSwapRequest{Inputs: inputs, Outputs: outputs}
	body, err := c.post(ctx, "/v1/swap", req)
	if err != nil {
		return nil, err
	}
	var res nut03.PostSwapResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %w", err)
	}
	return res.Signatures, nil
}

func (c *Client) CheckState(ctx context.Context, ys []string) (map[string]pocket.MintProofState, error) {
	req := nut07.PostCheckStateRequest{Ys: ys}
	body, err := c.post(ctx, "/v1/checkstate", req)
	if err != nil {
		return nil, err
	}
	var res nut07.PostCheckStateResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %w", err)
	}

	out := make(map[string]pocket.MintProofState, len(res.States))
	for _, s := range res.States {
		out[s.Y] = mintStateFrom(s.State)
	}
	return out, nil
}

func mintStateFrom(s nut07.State) pocket.MintProofState {
	switch s {
	case nut07.Spent:
		return pocket.MintSpent
	case nut07.Pending:
		return pocket.MintPending
	default:
		return pocket.MintUnspent
	}
}

func (c *Client) Restore(ctx context.Context, outputs cashu.BlindedMessages) (cashu.BlindedMessages, cashu.BlindedSignatures, error) {
	req := nut09.PostRestoreRequest{Outputs: outputs}
	body, err := c.post(ctx, "/v1/restore", req)
	if err != nil {
		return nil, nil, err
	}
	var res nut09.PostRestoreResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, nil, fmt.Errorf("error reading response from mint: %w", err)
	}
	return res.Outputs, res.Signatures, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.mintURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	return readBody(resp)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.mintURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	return readBody(resp)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		var errResponse cashu.Error
		if err := json.NewDecoder(resp.Body).Decode(&errResponse); err != nil {
			return nil, fmt.Errorf("could not decode error response from mint: %w", err)
		}
		return nil, errResponse
	}
	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s", body)
	}
	return io.ReadAll(resp.Body)
}
