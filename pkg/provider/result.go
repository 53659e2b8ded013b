package provider

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
	protocol "go.lsp.dev/protocol"
)

// Result is a completion response with the two wire shapes already
// resolved: a bare item list, or a wrapped list carrying isIncomplete and
// per-batch item defaults.
type Result struct {
	IsIncomplete bool
	Defaults     *ItemDefaults
	Items        []protocol.CompletionItem
}

// ItemDefaults are batch-level defaults merged into every item lacking
// the corresponding field. The merge fills empty fields only, it never
// overwrites.
type ItemDefaults struct {
	CommitCharacters []string                  `json:"commitCharacters,omitempty"`
	EditRange        *EditRange                `json:"editRange,omitempty"`
	InsertTextFormat protocol.InsertTextFormat `json:"insertTextFormat,omitempty"`
	InsertTextMode   protocol.InsertTextMode   `json:"insertTextMode,omitempty"`
	Data             any                       `json:"data,omitempty"`
}

// EditRange is either a single replace range or an insert/replace pair.
type EditRange struct {
	Range   *protocol.Range
	Insert  *protocol.Range
	Replace *protocol.Range
}

// UnmarshalJSON resolves the two editRange shapes.
func (er *EditRange) UnmarshalJSON(data []byte) error {
	var pair struct {
		Insert  *protocol.Range `json:"insert"`
		Replace *protocol.Range `json:"replace"`
	}
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.Wrap(err, "editRange")
	}
	if pair.Insert != nil || pair.Replace != nil {
		er.Insert = pair.Insert
		er.Replace = pair.Replace
		return nil
	}
	var r protocol.Range
	if err := json.Unmarshal(data, &r); err != nil {
		return errors.Wrap(err, "editRange")
	}
	er.Range = &r
	return nil
}

// ReplaceRange returns the range replacement text is anchored at.
func (er *EditRange) ReplaceRange() *protocol.Range {
	if er == nil {
		return nil
	}
	if er.Range != nil {
		return er.Range
	}
	return er.Replace
}

// UnmarshalJSON resolves the bare-list vs list-with-defaults response
// shapes once, at the provider boundary.
func (r *Result) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = Result{}
		return nil
	}
	if trimmed[0] == '[' {
		*r = Result{}
		if err := json.Unmarshal(data, &r.Items); err != nil {
			return errors.Wrap(err, "completion item list")
		}
		return nil
	}
	var wire struct {
		IsIncomplete bool                      `json:"isIncomplete"`
		ItemDefaults *ItemDefaults             `json:"itemDefaults"`
		Items        []protocol.CompletionItem `json:"items"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.Wrap(err, "completion list")
	}
	r.IsIncomplete = wire.IsIncomplete
	r.Defaults = wire.ItemDefaults
	r.Items = wire.Items
	return nil
}

// ApplyDefaults merges the batch defaults into every item, fill-only.
// Safe to call more than once and on results without defaults.
func (r *Result) ApplyDefaults() {
	if r == nil || r.Defaults == nil {
		return
	}
	d := r.Defaults
	for i := range r.Items {
		item := &r.Items[i]
		if item.CommitCharacters == nil && d.CommitCharacters != nil {
			item.CommitCharacters = d.CommitCharacters
		}
		if item.TextEdit == nil {
			if rng := d.EditRange.ReplaceRange(); rng != nil {
				newText := item.InsertText
				if newText == "" {
					newText = item.Label
				}
				item.TextEdit = &protocol.TextEdit{Range: *rng, NewText: newText}
			}
		}
		if item.InsertTextFormat == 0 && d.InsertTextFormat != 0 {
			item.InsertTextFormat = d.InsertTextFormat
		}
		if item.InsertTextMode == 0 && d.InsertTextMode != 0 {
			item.InsertTextMode = d.InsertTextMode
		}
		if item.Data == nil && d.Data != nil {
			item.Data = d.Data
		}
	}
}
