// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Short-form intrinsic tags that map to Fn::<Name>.
var fnTags = map[string]bool{
	"Base64": true, "Cidr": true, "FindInMap": true, "GetAtt": true,
	"GetAZs": true, "ImportValue": true, "Join": true, "Select": true,
	"Split": true, "Sub": true, "Transform": true, "And": true,
	"Equals": true, "If": true, "Not": true, "Or": true, "Length": true,
	"ToJsonString": true,
}

// ParseTemplate decodes a JSON or YAML CloudFormation template, expanding
// short-form intrinsic tags into their long JSON form.
func ParseTemplate(body []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if doc.Kind == 0 {
		return map[string]any{}, nil
	}
	return convert(&doc)
}

// TemplateJSON renders a template as indented long-form JSON.
func TemplateJSON(body []byte) ([]byte, error) {
	v, err := ParseTemplate(body)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

func convert(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return convert(n.Content[0])
	case yaml.AliasNode:
		return convert(n.Alias)
	}

	if tag := n.Tag; strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!") {
		return convertTagged(n, strings.TrimPrefix(tag, "!"))
	}

	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			if n.Content[i].Kind == yaml.AliasNode {
				k = n.Content[i].Alias.Value
			}
			v, err := convert(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := convert(c)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func convertTagged(n *yaml.Node, name string) (any, error) {
	plain := *n
	plain.Tag = ""
	if n.Kind == yaml.ScalarNode {
		plain.Tag = "!!str"
	}
	inner, err := convert(&plain)
	if err != nil {
		return nil, err
	}

	switch {
	case name == "Ref":
		return map[string]any{"Ref": inner}, nil
	case name == "Condition":
		return map[string]any{"Condition": inner}, nil
	case name == "GetAtt":
		if s, ok := inner.(string); ok {
			res, attr, found := strings.Cut(s, ".")
			if !found {
				return nil, fmt.Errorf("line %d: !GetAtt %q needs Resource.Attribute", n.Line, s)
			}
			return map[string]any{"Fn::GetAtt": []any{res, attr}}, nil
		}
		return map[string]any{"Fn::GetAtt": inner}, nil
	case fnTags[name]:
		return map[string]any{"Fn::" + name: inner}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown tag !%s", n.Line, name)
	}
}
