// Package nodemap groups Home Assistant entities into logical nodes.
//
// Entity IDs follow no single convention (switch.pump_1,
// sensor.pump1_temp, light.pump all belong to some pump-ish device),
// so nodes are keyed by the leading underscore-delimited segment of
// the object ID and a representative entity per domain is chosen by a
// cascading specificity order. The cascade order is load-bearing:
// callers and the web UI depend on which entity wins.
package nodemap

import (
	"sort"
	"strings"

	"github.com/mjenner/nodegate/internal/pkg/haapi"
)

// DefaultDomains is the set of entity domains considered when
// discovering nodes.
var DefaultDomains = Domains("switch", "sensor", "number", "light", "binary_sensor")

// Domains builds a domain whitelist from a list of domain names.
func Domains(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}

	return set
}

// Node is one logical device: all entities sharing a naming token,
// plus the representative entity chosen for each domain. Nodes are
// rebuilt from a snapshot on every request and never stored.
type Node struct {
	Token    string
	Entities map[string][]string
	Repr     map[string]string
}

// Build derives the node map from a state snapshot. Entities with a
// malformed ID, a domain outside the whitelist or an empty token are
// skipped. Per-domain entity lists preserve snapshot order.
func Build(states []haapi.EntityState, domains map[string]bool) map[string]*Node {
	nodes := map[string]*Node{}

	for _, s := range states {
		i := strings.Index(s.EntityID, ".")
		if i < 0 {
			continue
		}

		domain, objectID := s.EntityID[:i], s.EntityID[i+1:]
		if !domains[domain] {
			continue
		}

		token := tokenOf(objectID)
		if token == "" {
			continue
		}

		node, ok := nodes[token]
		if !ok {
			node = &Node{
				Token:    token,
				Entities: map[string][]string{},
				Repr:     map[string]string{},
			}
			nodes[token] = node
		}
		node.Entities[domain] = append(node.Entities[domain], s.EntityID)
	}

	for _, node := range nodes {
		for domain, eids := range node.Entities {
			node.Repr[domain] = pickRepresentative(eids, node.Token)
		}
	}

	return nodes
}

// Tokens returns the node tokens in ascending order, for stable
// presentation.
func Tokens(nodes map[string]*Node) []string {
	tokens := make([]string, 0, len(nodes))
	for t := range nodes {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	return tokens
}

// tokenOf extracts the node token from an object ID: the part before
// the first underscore, or before the first dot when there is none,
// or the whole object ID.
func tokenOf(objectID string) string {
	if i := strings.Index(objectID, "_"); i >= 0 {
		return objectID[:i]
	}
	if i := strings.Index(objectID, "."); i >= 0 {
		return objectID[:i]
	}

	return objectID
}

// pickRepresentative selects the entity that acts for the node in one
// domain. Rules are tried in order, first matching candidate (in
// snapshot order) wins:
//
//  1. object ID starts with "<token>_"
//  2. entity ID contains ".<token>." (degenerate single-word case)
//  3. object ID starts with the token
//  4. entity ID contains the token anywhere
//  5. first candidate
func pickRepresentative(eids []string, token string) string {
	if len(eids) == 0 {
		return ""
	}

	for _, e := range eids {
		if strings.HasPrefix(objectIDOf(e), token+"_") {
			return e
		}
	}
	for _, e := range eids {
		if strings.Contains(e, "."+token+".") {
			return e
		}
	}
	for _, e := range eids {
		if strings.HasPrefix(objectIDOf(e), token) {
			return e
		}
	}
	for _, e := range eids {
		if strings.Contains(e, token) {
			return e
		}
	}

	return eids[0]
}

func objectIDOf(entityID string) string {
	if i := strings.Index(entityID, "."); i >= 0 {
		return entityID[i+1:]
	}

	return entityID
}
