package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// canonicalEntry mirrors Entry for hashing. Struct fields marshal in
// declaration order and encoding/json writes map keys sorted, so the
// output is byte-identical for semantically equal entries regardless of
// metadata insertion order. EntryHash is excluded, PreviousHash included.
type canonicalEntry struct {
	BlockNumber  int64          `json:"blockNumber"`
	Timestamp    string         `json:"timestamp"`
	ActorID      string         `json:"actorId"`
	ActorType    ActorType      `json:"actorType"`
	Action       string         `json:"action"`
	Category     Category       `json:"category"`
	Severity     Severity       `json:"severity"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	ResourceName string         `json:"resourceName"`
	Description  string         `json:"description"`
	Metadata     map[string]any `json:"metadata"`
	Success      bool           `json:"success"`
	PreviousHash string         `json:"previousHash"`
}

// normalizeMetadata reduces arbitrary metadata values to plain JSON types
// (string, json.Number, bool, nil, maps, slices). Custom marshalers and
// Go numeric types all land in one fixed encoding, so hashing the map
// before and after a storage round trip yields the same bytes.
func normalizeMetadata(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("serializing metadata: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("normalizing metadata: %w", err)
	}
	return out, nil
}

// CanonicalBytes returns the deterministic serialization an entry is
// hashed over. Timestamps are rendered RFC3339Nano in UTC and nil
// metadata canonicalizes the same as an empty map.
func CanonicalBytes(e Entry) ([]byte, error) {
	meta, err := normalizeMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	ce := canonicalEntry{
		BlockNumber:  e.BlockNumber,
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		ActorID:      e.Actor.ID,
		ActorType:    e.Actor.Type,
		Action:       e.Action,
		Category:     e.Category,
		Severity:     e.Severity,
		Description:  e.Description,
		Metadata:     meta,
		Success:      e.Success,
		PreviousHash: e.PreviousHash,
	}
	if e.Resource != nil {
		ce.ResourceType = e.Resource.Type
		ce.ResourceID = e.Resource.ID
		ce.ResourceName = e.Resource.Name
	}
	b, err := json.Marshal(ce)
	if err != nil {
		return nil, fmt.Errorf("serializing entry %d: %w", e.BlockNumber, err)
	}
	return b, nil
}

// ComputeHash returns the lowercase hex SHA-256 of the entry's canonical
// bytes. Any reader can recompute it to check the stored EntryHash.
func ComputeHash(e Entry) (string, error) {
	b, err := CanonicalBytes(e)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalMetadata returns the canonical JSON text of a metadata map:
// keys sorted, values normalized, nil rendered as {}. The size cap is
// measured on this form and stores persist it verbatim.
func CanonicalMetadata(m map[string]any) ([]byte, error) {
	norm, err := normalizeMetadata(m)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(norm)
	if err != nil {
		return nil, fmt.Errorf("serializing metadata: %w", err)
	}
	return b, nil
}

// DecodeMetadata parses canonical metadata text back into a map. Numbers
// decode as json.Number so re-serialization reproduces the exact bytes
// that were hashed.
func DecodeMetadata(text string) (map[string]any, error) {
	if text == "" || text == "{}" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
