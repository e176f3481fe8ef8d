package snapshot

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"
)

// Render builds the snapshot document for p.
func Render(p Project, updatedBy, remark string) (string, error) {
	items, err := node(p.Items)
	if err != nil {
		return "", fmt.Errorf("render items: %w", err)
	}

	doc := mapping(
		"snapshot", mapping(
			"updated_by", scalar(updatedBy),
			"remark", scalar(remark),
		),
		"project", mapping(
			"id", scalar(p.ID),
			"name", scalar(p.Name),
			"created_at", scalar(p.CreatedAt.UTC().Format(isoFormat)),
		),
		"items", items,
	)

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("render snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("render snapshot: %w", err)
	}
	return b.String(), nil
}

// isoFormat is ISO 8601 without a zone suffix; timestamps are UTC.
const isoFormat = "2006-01-02T15:04:05.999999"

func mapping(kv ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Content = append(n.Content, scalar(kv[i].(string)), kv[i+1].(*yaml.Node))
	}
	return n
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// node converts stored values to YAML, keeping the key order of bson.D.
func node(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case bson.D:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range t {
			val, err := node(e.Value)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, scalar(e.Key), val)
		}
		return n, nil
	case bson.A:
		return node([]any(t))
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range t {
			val, err := node(e)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, val)
		}
		return n, nil
	case bson.ObjectID:
		return scalar(t.Hex()), nil
	case bson.DateTime:
		return scalar(t.Time().UTC().Format(isoFormat)), nil
	case time.Time:
		return scalar(t.UTC().Format(isoFormat)), nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(v); err != nil {
			return nil, err
		}
		return n, nil
	}
}
