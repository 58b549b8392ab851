package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Clock is the ledger's well-known shared clock object, used by on-chain
// lock timeout checks.
const Clock = "0x0000000000000000000000000000000000000000000000000000000000000006"

// defaultGasBudget is 0.1 of the ledger's native token, denominated in its
// smallest unit.
const defaultGasBudget = uint64(10_000_000_000)

// DefaultRPCURL is the ledger node endpoint every invocation uses.
// There is no config surface for this (see spec's closed env/config-key
// list): the remote URL names only the remote-state object, never a
// node, so every invocation talks to the same well-known public fullnode.
const DefaultRPCURL = "https://fullnode.testnet.sui.io:443"

// sharedBlobStatusBatchSize caps how many object ids are resolved per RPC
// round trip.
const sharedBlobStatusBatchSize = 50

// SharedBlobStatus is the resolved lifetime of one uploaded blob, read
// from its on-chain shared-object wrapper.
type SharedBlobStatus struct {
	ObjectID string
	BlobID   string
	EndEpoch uint64
}

// Client talks to the ledger node's JSON-RPC surface on behalf of one
// remote-state object: reading its ref table and objects pointer,
// resolving blob lifetimes, and submitting signed transactions that
// update it.
type Client struct {
	rpc             *rpcClient
	packageID       string
	stateObjectID   string // empty for a NewClientForInit client until CreateRemote sets it
	signer          *Signer
	gasBudget       uint64
}

// NewClient constructs a client bound to an existing remote-state object.
func NewClient(rpcURL, packageID, stateObjectID string, signer *Signer) *Client {
	return &Client{
		rpc:           newRPCClient(rpcURL),
		packageID:     packageID,
		stateObjectID: stateObjectID,
		signer:        signer,
		gasBudget:     defaultGasBudget,
	}
}

// NewClientForInit constructs a client with no bound remote-state object
// yet, for use by the one-time `init` flow that creates one.
func NewClientForInit(rpcURL, packageID string, signer *Signer) *Client {
	return NewClient(rpcURL, packageID, "", signer)
}

// NewClientFromStateObject constructs a client bound to stateObjectID,
// resolving its owning package id by reading the object's reported Move
// type. This is the path a bare remote URL takes: the URL names only the
// remote-state object, never its package, so the package id is derived
// rather than configured.
func NewClientFromStateObject(ctx context.Context, rpcURL, stateObjectID string, signer *Signer) (*Client, error) {
	rpc := newRPCClient(rpcURL)
	typeString, err := fetchObjectType(ctx, rpc, stateObjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve remote-state object %s: %w", stateObjectID, err)
	}
	packageID, err := extractPackageID(typeString)
	if err != nil {
		return nil, err
	}
	return &Client{
		rpc:           rpc,
		packageID:     packageID,
		stateObjectID: stateObjectID,
		signer:        signer,
		gasBudget:     defaultGasBudget,
	}, nil
}

func fetchObjectType(ctx context.Context, rpc *rpcClient, objectID string) (string, error) {
	var result getObjectResult
	if err := rpc.call(ctx, "sui_getObject", []any{
		objectID,
		map[string]any{"showType": true},
	}, &result); err != nil {
		return "", err
	}
	if result.Data == nil {
		return "", fmt.Errorf("object not found: %s", objectID)
	}
	return result.Data.Type, nil
}

// StateObjectID returns the bound remote-state object id.
func (c *Client) StateObjectID() string {
	return c.stateObjectID
}

type objectRef struct {
	ObjectID string `json:"objectId"`
	Version  any    `json:"version"`
	Digest   string `json:"digest"`
}

type getObjectResult struct {
	Data *struct {
		ObjectID string          `json:"objectId"`
		Version  any             `json:"version"`
		Digest   string          `json:"digest"`
		Type     string          `json:"type"`
		Content  json.RawMessage `json:"content"`
	} `json:"data"`
}

func (c *Client) getObjectRef(ctx context.Context, objectID string) (objectRef, error) {
	var result getObjectResult
	if err := c.rpc.call(ctx, "sui_getObject", []any{
		objectID,
		map[string]any{"showOwner": true},
	}, &result); err != nil {
		return objectRef{}, err
	}
	if result.Data == nil {
		return objectRef{}, fmt.Errorf("object not found: %s", objectID)
	}
	return objectRef{ObjectID: result.Data.ObjectID, Version: result.Data.Version, Digest: result.Data.Digest}, nil
}

// extractPackageID derives the package id from a remote-state object's
// reported Move type, formatted as "0xPACKAGE::remote_state::RemoteState".
func extractPackageID(typeString string) (string, error) {
	parts := strings.SplitN(typeString, "::", 2)
	if len(parts) < 2 {
		return "", fmt.Errorf("unrecognized remote-state type string: %s", typeString)
	}
	return parts[0], nil
}

// moveCall builds an unsigned transaction for a single Move entry
// function call via the unsafe_moveCall RPC method, signs it, and submits
// it for execution. Operations that must commit atomically as a group use
// moveCallBatch instead.
func (c *Client) moveCall(ctx context.Context, module, function string, args []any) (json.RawMessage, error) {
	var built struct {
		TxBytes string `json:"txBytes"`
	}
	err := c.rpc.call(ctx, "unsafe_moveCall", []any{
		c.signer.Address(),
		c.packageID,
		module,
		function,
		[]string{}, // type arguments
		args,
		nil, // gas object: let the node pick one
		fmt.Sprintf("%d", c.gasBudget),
	}, &built)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s::%s transaction: %w", module, function, err)
	}

	sigB64, err := c.signer.SignTransaction(built.TxBytes)
	if err != nil {
		return nil, err
	}

	var execResult struct {
		Effects struct {
			Created []struct {
				Reference objectRef `json:"reference"`
			} `json:"created"`
			Status struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			} `json:"status"`
		} `json:"effects"`
	}
	err = c.rpc.call(ctx, "sui_executeTransactionBlock", []any{
		built.TxBytes,
		[]string{sigB64},
		map[string]any{"showEffects": true, "showObjectChanges": true},
		"WaitForLocalExecution",
	}, &execResult)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s::%s transaction: %w", module, function, err)
	}
	if execResult.Effects.Status.Status != "" && execResult.Effects.Status.Status != "success" {
		return nil, fmt.Errorf("%s::%s transaction failed: %s", module, function, execResult.Effects.Status.Error)
	}

	raw, err := json.Marshal(execResult)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// moveCallParams is one Move entry function call bundled into a
// moveCallBatch transaction.
type moveCallParams struct {
	module   string
	function string
	args     []any
}

// moveCallBatch builds, signs, and executes every call in calls as a
// single atomic transaction via the unsafe_batchTransaction RPC method —
// the JSON-RPC counterpart of the programmable transaction block the
// original assembles with ProgrammableTransactionBuilder
// (_examples/original_source/src/sui/client.rs:988-1049). All calls commit
// or none do.
func (c *Client) moveCallBatch(ctx context.Context, calls []moveCallParams) (json.RawMessage, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("moveCallBatch requires at least one call")
	}

	txParams := make([]any, len(calls))
	for i, call := range calls {
		txParams[i] = map[string]any{
			"moveCallRequestParams": map[string]any{
				"packageObjectId": c.packageID,
				"module":          call.module,
				"function":        call.function,
				"typeArguments":   []string{},
				"arguments":       call.args,
			},
		}
	}

	var built struct {
		TxBytes string `json:"txBytes"`
	}
	err := c.rpc.call(ctx, "unsafe_batchTransaction", []any{
		c.signer.Address(),
		txParams,
		nil, // gas object: let the node pick one
		fmt.Sprintf("%d", c.gasBudget),
		"WaitForLocalExecution",
	}, &built)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch transaction of %d calls: %w", len(calls), err)
	}

	sigB64, err := c.signer.SignTransaction(built.TxBytes)
	if err != nil {
		return nil, err
	}

	var execResult struct {
		Effects struct {
			Status struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			} `json:"status"`
		} `json:"effects"`
	}
	err = c.rpc.call(ctx, "sui_executeTransactionBlock", []any{
		built.TxBytes,
		[]string{sigB64},
		map[string]any{"showEffects": true, "showObjectChanges": true},
		"WaitForLocalExecution",
	}, &execResult)
	if err != nil {
		return nil, fmt.Errorf("failed to execute batch transaction of %d calls: %w", len(calls), err)
	}
	if execResult.Effects.Status.Status != "" && execResult.Effects.Status.Status != "success" {
		return nil, fmt.Errorf("batch transaction of %d calls failed: %s", len(calls), execResult.Effects.Status.Error)
	}

	raw, err := json.Marshal(execResult)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateRemote creates a new remote-state object owned by the signer's
// address and returns its object id.
func (c *Client) CreateRemote(ctx context.Context) (string, error) {
	raw, err := c.moveCall(ctx, "remote_state", "create_remote", nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Effects struct {
			Created []struct {
				Reference objectRef `json:"reference"`
			} `json:"created"`
		} `json:"effects"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to parse create_remote response: %w", err)
	}
	if len(result.Effects.Created) == 0 {
		return "", fmt.Errorf("create_remote transaction created no objects")
	}

	objectID := result.Effects.Created[0].Reference.ObjectID
	c.stateObjectID = objectID
	return objectID, nil
}

// ShareRemote converts an owned remote-state object into a shared object
// readable and writable (subject to the allowlist) by every collaborator.
func (c *Client) ShareRemote(ctx context.Context, objectID string, allowlist []string) error {
	_, err := c.moveCall(ctx, "remote_state", "share_with_allowlist", []any{objectID, allowlist})
	return err
}

// ReadRefs reads every ref currently stored in the remote-state's ref
// table, paginating through the table's dynamic fields.
func (c *Client) ReadRefs(ctx context.Context) (map[string]string, error) {
	refs := make(map[string]string)
	cursor := ""

	for {
		var page struct {
			Data []struct {
				Name struct {
					Value string `json:"value"`
				} `json:"name"`
				ObjectID string `json:"objectId"`
			} `json:"data"`
			NextCursor string `json:"nextCursor"`
			HasNextPage bool  `json:"hasNextPage"`
		}

		params := []any{c.stateObjectID, cursor, 100}
		if cursor == "" {
			params[1] = nil
		}
		if err := c.rpc.call(ctx, "suix_getDynamicFields", params, &page); err != nil {
			return nil, fmt.Errorf("failed to list ref table entries: %w", err)
		}

		for _, entry := range page.Data {
			var fieldObj getObjectResult
			if err := c.rpc.call(ctx, "sui_getObject", []any{
				entry.ObjectID,
				map[string]any{"showContent": true},
			}, &fieldObj); err != nil {
				return nil, fmt.Errorf("failed to read ref table entry %s: %w", entry.ObjectID, err)
			}
			value, err := extractDynamicFieldStringValue(fieldObj)
			if err != nil {
				return nil, fmt.Errorf("failed to parse ref table entry %s: %w", entry.Name.Value, err)
			}
			refs[entry.Name.Value] = value
		}

		if !page.HasNextPage {
			break
		}
		cursor = page.NextCursor
	}

	return refs, nil
}

func extractDynamicFieldStringValue(obj getObjectResult) (string, error) {
	if obj.Data == nil {
		return "", fmt.Errorf("dynamic field object has no data")
	}
	var content struct {
		Fields struct {
			Value string `json:"value"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(obj.Data.Content, &content); err != nil {
		return "", err
	}
	return content.Fields.Value, nil
}

// GetObjectsBlobObjectID returns the currently-stored pointer to the blob
// holding the serialized objects map, or "" if none has been set yet.
func (c *Client) GetObjectsBlobObjectID(ctx context.Context) (string, error) {
	var result getObjectResult
	if err := c.rpc.call(ctx, "sui_getObject", []any{
		c.stateObjectID,
		map[string]any{"showContent": true},
	}, &result); err != nil {
		return "", err
	}
	if result.Data == nil {
		return "", fmt.Errorf("remote-state object not found: %s", c.stateObjectID)
	}

	var content struct {
		Fields struct {
			ObjectsBlobObjectID *string `json:"objects_blob_object_id"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(result.Data.Content, &content); err != nil {
		return "", fmt.Errorf("failed to parse remote-state content: %w", err)
	}
	if content.Fields.ObjectsBlobObjectID == nil {
		return "", nil
	}
	return *content.Fields.ObjectsBlobObjectID, nil
}

// GetSharedBlobStatus resolves a single shared-blob wrapper object's blob
// id and expiration epoch.
func (c *Client) GetSharedBlobStatus(ctx context.Context, objectID string) (SharedBlobStatus, error) {
	var result getObjectResult
	if err := c.rpc.call(ctx, "sui_getObject", []any{
		objectID,
		map[string]any{"showContent": true},
	}, &result); err != nil {
		return SharedBlobStatus{}, err
	}
	if result.Data == nil {
		return SharedBlobStatus{}, fmt.Errorf("shared blob object not found: %s", objectID)
	}
	return parseSharedBlobContent(objectID, result.Data.Content)
}

// GetSharedBlobStatusesBatch resolves many shared-blob wrappers at once,
// chunking requests so the ledger's RPC limits are never exceeded.
// Results are returned in request order; a failure for one object id does
// not abort the others.
func (c *Client) GetSharedBlobStatusesBatch(ctx context.Context, objectIDs []string) ([]SharedBlobStatus, []error) {
	statuses := make([]SharedBlobStatus, len(objectIDs))
	errs := make([]error, len(objectIDs))

	for start := 0; start < len(objectIDs); start += sharedBlobStatusBatchSize {
		end := start + sharedBlobStatusBatchSize
		if end > len(objectIDs) {
			end = len(objectIDs)
		}
		chunk := objectIDs[start:end]

		var results []getObjectResult
		err := c.rpc.call(ctx, "sui_multiGetObjects", []any{
			chunk,
			map[string]any{"showContent": true},
		}, &results)
		if err != nil {
			for i := range chunk {
				errs[start+i] = err
			}
			continue
		}

		for i, result := range results {
			if result.Data == nil {
				errs[start+i] = fmt.Errorf("shared blob object not found: %s", chunk[i])
				continue
			}
			status, err := parseSharedBlobContent(chunk[i], result.Data.Content)
			if err != nil {
				errs[start+i] = err
				continue
			}
			statuses[start+i] = status
		}
	}

	return statuses, errs
}

func parseSharedBlobContent(objectID string, raw json.RawMessage) (SharedBlobStatus, error) {
	var content struct {
		Fields struct {
			Blob struct {
				Fields struct {
					BlobID  string `json:"blob_id"`
					Storage struct {
						Fields struct {
							EndEpoch string `json:"end_epoch"`
						} `json:"fields"`
					} `json:"storage"`
				} `json:"fields"`
			} `json:"blob"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return SharedBlobStatus{}, err
	}

	blobID, err := parseNumericBlobID(content.Fields.Blob.Fields.BlobID)
	if err != nil {
		return SharedBlobStatus{}, err
	}

	var endEpoch uint64
	if _, err := fmt.Sscanf(content.Fields.Blob.Fields.Storage.Fields.EndEpoch, "%d", &endEpoch); err != nil {
		return SharedBlobStatus{}, fmt.Errorf("failed to parse end_epoch: %w", err)
	}

	return SharedBlobStatus{ObjectID: objectID, BlobID: blobID, EndEpoch: endEpoch}, nil
}

// parseNumericBlobID converts a blob id stored on-chain as a decimal
// u256 string into the URL-safe base64 form the blob store's CLI expects.
func parseNumericBlobID(decimal string) (string, error) {
	n, ok := new(big.Int).SetString(decimal, 10)
	if !ok {
		return "", fmt.Errorf("unable to parse numeric blob id: %s", decimal)
	}

	littleEndian := n.Bytes()
	reverse(littleEndian)

	buf := make([]byte, 32)
	copy(buf, littleEndian)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// AcquireLock acquires the remote-state's write lock, retrying on
// transient gateway timeouts since the underlying transaction may have
// succeeded even though the RPC call timed out.
func (c *Client) AcquireLock(ctx context.Context, timeoutMs uint64) error {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 2)

	return backoff.Retry(func() error {
		_, err := c.moveCall(ctx, "remote_state", "acquire_lock", []any{
			c.stateObjectID, Clock, fmt.Sprintf("%d", timeoutMs),
		})
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "504") {
			acquired, checkErr := c.CheckLockAcquired(ctx)
			if checkErr == nil && acquired {
				return nil
			}
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// CheckLockAcquired reports whether the remote-state's lock field is
// currently set.
func (c *Client) CheckLockAcquired(ctx context.Context) (bool, error) {
	var result getObjectResult
	if err := c.rpc.call(ctx, "sui_getObject", []any{
		c.stateObjectID,
		map[string]any{"showContent": true},
	}, &result); err != nil {
		return false, err
	}
	if result.Data == nil {
		return false, fmt.Errorf("remote-state object not found: %s", c.stateObjectID)
	}

	var content struct {
		Fields struct {
			Lock *string `json:"lock"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(result.Data.Content, &content); err != nil {
		return false, err
	}
	return content.Fields.Lock != nil, nil
}

// ReleaseLock releases the remote-state's write lock.
func (c *Client) ReleaseLock(ctx context.Context) error {
	_, err := c.moveCall(ctx, "remote_state", "release_lock", []any{c.stateObjectID})
	return err
}

// UpdateObjectsBlob points the remote-state at a new objects-map blob.
func (c *Client) UpdateObjectsBlob(ctx context.Context, blobObjectID string) error {
	_, err := c.moveCall(ctx, "remote_state", "update_objects_blob", []any{c.stateObjectID, blobObjectID, Clock})
	return err
}

// UpsertRef writes a single ref update into the remote-state's ref table.
func (c *Client) UpsertRef(ctx context.Context, refName, commitSHA1 string) error {
	_, err := c.moveCall(ctx, "remote_state", "upsert_ref", []any{c.stateObjectID, refName, commitSHA1})
	return err
}

// UpsertRefsAndUpdateObjects upserts every ref, points the remote-state at
// the new objects blob, and releases the write lock as one atomic
// transaction: all of it lands or none of it does, so a crash or a
// rejected call never leaves refs pointing at an objects blob that was
// never actually published. Ref order within the batch is sorted for a
// deterministic transaction across retries.
func (c *Client) UpsertRefsAndUpdateObjects(ctx context.Context, refs map[string]string, objectsBlobObjectID string) error {
	refNames := make([]string, 0, len(refs))
	for refName := range refs {
		refNames = append(refNames, refName)
	}
	sort.Strings(refNames)

	calls := make([]moveCallParams, 0, len(refNames)+2)
	for _, refName := range refNames {
		calls = append(calls, moveCallParams{
			module:   "remote_state",
			function: "upsert_ref",
			args:     []any{c.stateObjectID, refName, refs[refName]},
		})
	}
	calls = append(calls,
		moveCallParams{
			module:   "remote_state",
			function: "update_objects_blob",
			args:     []any{c.stateObjectID, objectsBlobObjectID, Clock},
		},
		moveCallParams{
			module:   "remote_state",
			function: "release_lock",
			args:     []any{c.stateObjectID},
		},
	)

	_, err := c.moveCallBatch(ctx, calls)
	if err != nil {
		return fmt.Errorf("failed to upsert %d ref(s) and update objects blob: %w", len(refNames), err)
	}
	return nil
}
