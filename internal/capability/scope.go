package capability

import (
	"encoding/json"
	"sort"
	"strings"
)

// ScopeKind identifies which variant of a capability scope is populated.
type ScopeKind int

const (
	// ScopeAll is the unrestricted scope. A missing or empty scope on the
	// wire means the same thing.
	ScopeAll ScopeKind = iota
	// ScopeDataSet restricts the grant to a set of data set ids.
	ScopeDataSet
	// ScopeID restricts the grant to a set of resource ids.
	ScopeID
	// ScopeProject restricts the grant to a set of project names.
	ScopeProject
	// ScopeRaw is any scope variant not modelled above. The original wire
	// name and body are retained so nothing is lost.
	ScopeRaw
)

// Scope is the closed set of scope variants a grant can carry. It is
// resolved once when the wire JSON is decoded; the rest of the code never
// inspects scope JSON directly.
type Scope struct {
	Kind     ScopeKind
	IDs      []string // ScopeDataSet, ScopeID
	Projects []string // ScopeProject
	Name     string   // ScopeRaw: wire name, e.g. "tableScope"
	Text     string   // ScopeRaw: compact JSON body
}

// AllScope returns the unrestricted scope.
func AllScope() Scope {
	return Scope{Kind: ScopeAll}
}

// String renders the scope suffix used in canonical keys. The unrestricted
// scope renders empty, so keys for it carry no scope component at all.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeAll:
		return ""
	case ScopeDataSet:
		return "data_set_ids=" + strings.Join(s.IDs, ",")
	case ScopeID:
		return "ids=" + strings.Join(s.IDs, ",")
	case ScopeProject:
		return "projects=" + strings.Join(s.Projects, ",")
	default:
		text := stripScopeWrapper(s.Text)
		if s.Name == "" {
			return text
		}
		return snakeCase(s.Name) + "=" + text
	}
}

// stripScopeWrapper removes an enclosing "Scope(...)" wrapper from textual
// scope renderings that carry one.
func stripScopeWrapper(s string) string {
	if strings.HasPrefix(s, "Scope(") && strings.HasSuffix(s, ")") {
		return s[len("Scope(") : len(s)-1]
	}
	return s
}

// parseScope resolves wire scope JSON into a Scope variant. The wire form
// is a single-key object, e.g. {"all": {}} or {"datasetScope": {"ids": [1]}}.
func parseScope(raw json.RawMessage) Scope {
	if len(raw) == 0 {
		return AllScope()
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return AllScope()
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	name := keys[0]
	body := m[name]

	switch name {
	case "all":
		return AllScope()
	case "datasetScope":
		return Scope{Kind: ScopeDataSet, IDs: parseIDList(body)}
	case "idScope", "idscope":
		return Scope{Kind: ScopeID, IDs: parseIDList(body)}
	case "projectScope", "projectsScope":
		return Scope{Kind: ScopeProject, Projects: parseProjectList(body)}
	default:
		text, _ := json.Marshal(m[name])
		return Scope{Kind: ScopeRaw, Name: name, Text: string(text)}
	}
}

// parseIDList reads {"ids": [...]} bodies. Ids arrive as numbers or strings
// depending on the producer; both are kept as decimal strings.
func parseIDList(body json.RawMessage) []string {
	var v struct {
		IDs []json.Number `json:"ids"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		// strings instead of numbers
		var sv struct {
			IDs []string `json:"ids"`
		}
		if err := json.Unmarshal(body, &sv); err != nil {
			return nil
		}
		return sv.IDs
	}
	ids := make([]string, 0, len(v.IDs))
	for _, n := range v.IDs {
		ids = append(ids, n.String())
	}
	return ids
}

func parseProjectList(body json.RawMessage) []string {
	var v struct {
		Projects []string `json:"projects"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v.Projects
}

// marshalScope renders a Scope back to its wire form. Only used for grants
// constructed in code; decoded grants re-emit their original bytes.
func marshalScope(s Scope) (json.RawMessage, error) {
	switch s.Kind {
	case ScopeAll:
		return json.RawMessage(`{"all":{}}`), nil
	case ScopeDataSet:
		return marshalIDScope("datasetScope", s.IDs)
	case ScopeID:
		return marshalIDScope("idScope", s.IDs)
	case ScopeProject:
		return json.Marshal(map[string]any{"projectScope": map[string]any{"projects": s.Projects}})
	default:
		body := json.RawMessage(s.Text)
		if len(body) == 0 {
			body = json.RawMessage(`{}`)
		}
		return json.Marshal(map[string]json.RawMessage{s.Name: body})
	}
}

func marshalIDScope(name string, ids []string) (json.RawMessage, error) {
	nums := make([]json.Number, 0, len(ids))
	for _, id := range ids {
		nums = append(nums, json.Number(id))
	}
	return json.Marshal(map[string]any{name: map[string]any{"ids": nums}})
}
