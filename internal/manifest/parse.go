package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Keys of the top-level manifest object that are metadata, not categories.
const (
	keyVersion     = "version"
	keyLastUpdated = "lastUpdated"
	keyBaseURL     = "baseUrl"
)

type leafWire struct {
	File     string   `json:"file,omitempty"`
	URL      string   `json:"url,omitempty"`
	Hash     string   `json:"hash,omitempty"`
	Size     flexSize `json:"size,omitempty"`
	Version  string   `json:"version,omitempty"`
	Type     string   `json:"type,omitempty"`
	Critical bool     `json:"critical,omitempty"`
}

// flexSize accepts sizes written either as numbers or numeric strings.
type flexSize int64

func (s *flexSize) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	if text == "" || text == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid size %s", data)
	}
	*s = flexSize(n)
	return nil
}

// Parse decodes a content or code manifest document. Every top-level object
// other than the metadata keys becomes a category; key order is preserved
// all the way down. manifestURL is used to resolve relative references when
// the document carries no baseUrl.
func Parse(class Class, data []byte, manifestURL string) (*Manifest, error) {
	keys, values, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	m := New(class, "")
	for i, key := range keys {
		raw := values[i]
		switch key {
		case keyVersion:
			m.Version = scalarString(raw)
		case keyLastUpdated:
			m.LastUpdated = scalarString(raw)
		case keyBaseURL:
			m.BaseURL = scalarString(raw)
		default:
			if !isObject(raw) {
				continue
			}
			category := &Node{Kind: NodeCategory, Name: key}
			if err := decodeChildren(class, category, raw); err != nil {
				return nil, fmt.Errorf("category %q: %w", key, err)
			}
			m.Categories = append(m.Categories, category)
		}
	}

	if strings.TrimSpace(m.Version) == "" {
		m.Version = "0.0.0"
	}
	m.Resolve(manifestURL)
	return m, nil
}

func decodeChildren(class Class, parent *Node, raw json.RawMessage) error {
	keys, values, err := decodeObject(raw)
	if err != nil {
		return err
	}

	for i, key := range keys {
		value := values[i]
		if !isObject(value) {
			continue
		}

		childKeys, childValues, err := decodeObject(value)
		if err != nil {
			return err
		}

		if looksLikeLeaf(childKeys, childValues) {
			var wire leafWire
			if err := json.Unmarshal(value, &wire); err != nil {
				return fmt.Errorf("leaf %q: %w", key, err)
			}
			parent.Children = append(parent.Children, &Node{
				Kind:  NodeLeaf,
				Name:  key,
				Entry: wire.entry(class, key),
			})
			continue
		}

		folder := &Node{Kind: NodeFolder, Name: key}
		if err := decodeChildren(class, folder, value); err != nil {
			return err
		}
		parent.Children = append(parent.Children, folder)
	}
	return nil
}

func (w leafWire) entry(class Class, key string) *Entry {
	ref := strings.TrimSpace(w.URL)
	if ref == "" {
		ref = strings.TrimSpace(w.File)
	}
	if ref == "" && class == ClassCode {
		ref = key
	}

	e := &Entry{
		File:        ref,
		ContentHash: strings.TrimSpace(w.Hash),
		Version:     strings.TrimSpace(w.Version),
		SizeBytes:   int64(w.Size),
		Critical:    w.Critical,
	}
	if class == ClassContent {
		e.Kind = KindContent
	} else {
		e.Kind = ParseAssetKind(w.Type, ref)
	}
	return e
}

// looksLikeLeaf reports whether a JSON object describes an asset: it has at
// least one of the leaf fields and none of them hold nested objects.
func looksLikeLeaf(keys []string, values []json.RawMessage) bool {
	found := false
	for i, key := range keys {
		switch key {
		case "file", "url", "hash", "version", "size":
			if isObject(values[i]) {
				return false
			}
			found = true
		}
	}
	return found
}

func decodeObject(data []byte) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var (
		keys   []string
		values []json.RawMessage
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("value for %q: %w", key, err)
		}

		// Duplicate keys: the last value wins but the first position is kept.
		if idx := indexOf(keys, key); idx >= 0 {
			values[idx] = raw
			continue
		}
		keys = append(keys, key)
		values = append(values, raw)
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// MarshalJSON encodes the manifest back into its wire schema, preserving
// category and key order.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeKV := func(key string, value interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(v)
		return nil
	}

	if err := writeKV(keyVersion, m.Version); err != nil {
		return nil, err
	}
	if m.LastUpdated != "" {
		if err := writeKV(keyLastUpdated, m.LastUpdated); err != nil {
			return nil, err
		}
	}
	if m.BaseURL != "" {
		if err := writeKV(keyBaseURL, m.BaseURL); err != nil {
			return nil, err
		}
	}
	for _, category := range m.Categories {
		if err := writeKV(category.Name, nodeJSON{node: category, class: m.Class}); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type nodeJSON struct {
	node  *Node
	class Class
}

func (n nodeJSON) MarshalJSON() ([]byte, error) {
	if n.node.Kind == NodeLeaf {
		return json.Marshal(wireFromEntry(n.class, n.node.Entry))
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, child := range n.node.Children {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(child.Name)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(nodeJSON{node: child, class: n.class})
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func wireFromEntry(class Class, e *Entry) leafWire {
	if e == nil {
		return leafWire{}
	}
	w := leafWire{
		Hash: e.ContentHash,
		Size: flexSize(e.SizeBytes),
	}
	if class == ClassCode {
		w.URL = e.File
		w.Version = e.Version
		w.Type = string(e.Kind)
		w.Critical = e.Critical
	} else {
		w.File = e.File
		w.Version = e.Version
	}
	return w
}
