package ledger

import "fmt"

// ValidateInput checks the caller-supplied parts of an entry before any
// block number is consumed. Category, severity and actor type are
// normalized by their Parse functions and never rejected here. A
// metadataCap of zero or less means MaxMetadataBytes.
func ValidateInput(actor Actor, action, description string, metadata map[string]any, metadataCap int) error {
	if metadataCap <= 0 {
		metadataCap = MaxMetadataBytes
	}
	if actor.ID == "" {
		return &ValidationError{Field: "actor.id", Reason: "must not be empty"}
	}
	if action == "" {
		return &ValidationError{Field: "action", Reason: "must not be empty"}
	}
	if !ValidAction(action) {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("%q is not a dot-separated taxonomy action", action)}
	}
	if description == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if metadata != nil {
		canonical, err := CanonicalMetadata(metadata)
		if err != nil {
			return &ValidationError{Field: "metadata", Reason: err.Error()}
		}
		if len(canonical) > metadataCap {
			return &ValidationError{
				Field:  "metadata",
				Reason: fmt.Sprintf("canonical form is %d bytes, cap is %d", len(canonical), metadataCap),
			}
		}
	}
	return nil
}
