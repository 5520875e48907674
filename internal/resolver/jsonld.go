package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	maxDepth = 64
	maxNodes = 10000
)

var gameTypes = map[string]struct{}{
	"videogame":           {},
	"game":                {},
	"softwareapplication": {},
}

type kind uint8

const (
	kindScalar kind = iota
	kindObject
	kindArray
)

// node is one JSON value. Objects keep member order so traversal follows the
// document.
type node struct {
	kind     kind
	text     string
	isString bool
	members  []member
	items    []*node
}

type member struct {
	key   string
	value *node
}

// get returns the value stored under key. Duplicate keys resolve to the last
// occurrence.
func (n *node) get(key string) *node {
	if n == nil || n.kind != kindObject {
		return nil
	}
	var found *node
	for _, m := range n.members {
		if m.key == key {
			found = m.value
		}
	}
	return found
}

func (n *node) str() (string, bool) {
	if n == nil || n.kind != kindScalar || !n.isString {
		return "", false
	}
	return n.text, true
}

type parseFrame struct {
	n       *node
	key     string
	haveKey bool
}

// parseJSON decodes text into a node tree without recursion. Nesting beyond
// maxDepth and trailing values are errors.
func parseJSON(text string) (*node, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var (
		root  *node
		stack []*parseFrame
	)
	attach := func(n *node) error {
		if len(stack) == 0 {
			if root != nil {
				return errors.New("unexpected data after top-level value")
			}
			root = n
			return nil
		}
		top := stack[len(stack)-1]
		if top.n.kind == kindObject {
			top.n.members = append(top.n.members, member{key: top.key, value: n})
			top.haveKey = false
			return nil
		}
		top.n.items = append(top.n.items, n)
		return nil
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode token: %w", err)
		}

		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				if len(stack) >= maxDepth {
					return nil, fmt.Errorf("nesting exceeds %d levels", maxDepth)
				}
				n := &node{kind: kindObject}
				if delim == '[' {
					n.kind = kindArray
				}
				if err := attach(n); err != nil {
					return nil, err
				}
				stack = append(stack, &parseFrame{n: n})
			case '}', ']':
				stack = stack[:len(stack)-1]
			}
			continue
		}

		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.n.kind == kindObject && !top.haveKey {
				key, _ := tok.(string)
				top.key = key
				top.haveKey = true
				continue
			}
		}
		if err := attach(scalar(tok)); err != nil {
			return nil, err
		}
	}

	if len(stack) > 0 {
		return nil, io.ErrUnexpectedEOF
	}
	if root == nil {
		return nil, errors.New("empty document")
	}
	return root, nil
}

func scalar(tok json.Token) *node {
	switch v := tok.(type) {
	case string:
		return &node{kind: kindScalar, text: v, isString: true}
	case json.Number:
		return &node{kind: kindScalar, text: v.String()}
	case bool:
		if v {
			return &node{kind: kindScalar, text: "true"}
		}
		return &node{kind: kindScalar, text: "false"}
	default:
		return &node{kind: kindScalar}
	}
}

// findGameNode walks root breadth-first and returns the first object whose
// @type names a game.
func findGameNode(root *node) *node {
	queue := appendObjects(nil, root)
	visited := 0
	for len(queue) > 0 && visited < maxNodes {
		current := queue[0]
		queue = queue[1:]
		visited++

		if isGameType(current.get("@type")) {
			return current
		}
		for _, m := range current.members {
			queue = appendObjects(queue, m.value)
		}
	}
	return nil
}

// appendObjects enqueues n if it is an object, or every object reachable
// through n's nested arrays in document order.
func appendObjects(queue []*node, n *node) []*node {
	stack := []*node{n}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch current.kind {
		case kindObject:
			queue = append(queue, current)
		case kindArray:
			for i := len(current.items) - 1; i >= 0; i-- {
				stack = append(stack, current.items[i])
			}
		}
	}
	return queue
}

func isGameType(t *node) bool {
	if t == nil {
		return false
	}
	candidates := []*node{t}
	if t.kind == kindArray {
		candidates = t.items
	}
	for _, c := range candidates {
		name, ok := c.str()
		if !ok {
			continue
		}
		if _, match := gameTypes[strings.ToLower(strings.TrimSpace(name))]; match {
			return true
		}
	}
	return false
}
