// Package capability models CDF IAM capability grants and reduces them to
// canonical keys of the form "resource:action" or "resource:action:scope".
// The key derivation is shared by the export, removal and backup paths and
// must stay identical across them.
package capability

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/permafrost-io/groupctl/internal/logging"
)

// knownActions is the action vocabulary seen across CDF acl types. Wire
// values are uppercase; canonical keys use the lowercase form.
var knownActions = map[string]bool{
	"create":   true,
	"delete":   true,
	"execute":  true,
	"list":     true,
	"memberof": true,
	"owner":    true,
	"read":     true,
	"review":   true,
	"suggest":  true,
	"update":   true,
	"use":      true,
	"write":    true,
}

// Grant is one capability entry held by a group: an acl type, a set of
// actions and a scope. Decoded grants keep their original wire bytes so a
// backup/restore cycle re-emits them verbatim, unknown fields included.
type Grant struct {
	ACL     string   // wire name of the acl entry, e.g. "timeSeriesAcl"
	Actions []string // normalized lowercase action tokens
	Scope   Scope

	raw json.RawMessage
}

// New builds a Grant in code. Actions are normalized the same way decoded
// ones are. Mostly useful in tests; production grants come off the wire.
func New(acl string, actions []string, scope Scope) Grant {
	g := Grant{ACL: acl, Scope: scope}
	for _, a := range actions {
		if n := normalizeAction(a); n != "" {
			g.Actions = append(g.Actions, n)
		}
	}
	return g
}

// Resource returns the canonical resource token for the grant's acl type.
func (g Grant) Resource() string {
	return resourceName(g.ACL)
}

// Keys returns the grant's canonical keys, one per distinct action, sorted.
// A grant with no actions has no identity and returns nil.
func (g Grant) Keys() []string {
	if len(g.Actions) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(g.Actions))
	actions := make([]string, 0, len(g.Actions))
	for _, a := range g.Actions {
		if !seen[a] {
			seen[a] = true
			actions = append(actions, a)
		}
	}
	sort.Strings(actions)

	resource := g.Resource()
	scope := g.Scope.String()
	keys := make([]string, 0, len(actions))
	for _, a := range actions {
		key := resource + ":" + a
		if scope != "" {
			key += ":" + scope
		}
		keys = append(keys, key)
	}
	return keys
}

// Dump returns the grant's wire JSON, byte-identical to what was decoded
// when the grant came off the wire.
func (g Grant) Dump() (json.RawMessage, error) {
	return g.MarshalJSON()
}

// Load decodes one capability entry from wire JSON. Unknown acl names,
// actions and scope variants are tolerated; the original bytes are kept.
func Load(raw json.RawMessage) (Grant, error) {
	var g Grant
	if err := g.UnmarshalJSON(raw); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// UnmarshalJSON decodes the single-key wire form
// {"<aclName>": {"actions": [...], "scope": {...}}}. Sibling keys such as
// "projectScope" are preserved in the raw bytes but not modelled.
func (g *Grant) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("capability: decode grant: %w", err)
	}

	name, body, err := aclEntry(m)
	if err != nil {
		return err
	}

	var inner struct {
		Actions []string        `json:"actions"`
		Scope   json.RawMessage `json:"scope"`
	}
	if err := json.Unmarshal(body, &inner); err != nil {
		return fmt.Errorf("capability: decode %s body: %w", name, err)
	}

	g.ACL = name
	g.Actions = g.Actions[:0]
	for _, a := range inner.Actions {
		if n := normalizeAction(a); n != "" {
			g.Actions = append(g.Actions, n)
		}
	}
	g.Scope = parseScope(inner.Scope)
	g.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original wire bytes when present, otherwise
// synthesizes the wire form from the typed fields.
func (g Grant) MarshalJSON() ([]byte, error) {
	if g.raw != nil {
		return g.raw, nil
	}

	scope, err := marshalScope(g.Scope)
	if err != nil {
		return nil, err
	}
	actions := make([]string, 0, len(g.Actions))
	for _, a := range g.Actions {
		actions = append(actions, strings.ToUpper(a))
	}
	body, err := json.Marshal(map[string]any{
		"actions": actions,
		"scope":   scope,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{g.ACL: body})
}

// aclEntry picks the acl entry out of a decoded capability object. The wire
// form is single-key, but producers may add sibling keys like "projectScope".
func aclEntry(m map[string]json.RawMessage) (string, json.RawMessage, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.HasSuffix(k, "Acl") {
			return k, m[k], nil
		}
	}
	for _, k := range keys {
		if k != "projectScope" && k != "projectUrlNames" {
			return k, m[k], nil
		}
	}
	return "", nil, errors.New("capability: no acl entry in grant")
}

// normalizeAction reduces an action's wire representation to a lowercase
// token. Plain vocabulary values ("READ") lowercase directly; anything else
// goes through the textual fallback: the substring after the last '.', cut
// at the first of ':', '\'' or '>', trimmed and lowercased.
func normalizeAction(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	if knownActions[lower] {
		return lower
	}

	tok := s
	if i := strings.LastIndex(tok, "."); i >= 0 {
		tok = tok[i+1:]
	}
	tok, _, _ = strings.Cut(tok, ":")
	tok, _, _ = strings.Cut(tok, "'")
	tok, _, _ = strings.Cut(tok, ">")
	tok = strings.ToLower(strings.TrimSpace(tok))
	if tok != lower {
		logging.Op().Debug("normalized unrecognized action form", "raw", s, "action", tok)
	}
	return tok
}
