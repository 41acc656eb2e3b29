package jamf

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
)

// commandLists hold <command> records without following the plural naming rule.
var commandLists = map[string]bool{"completed": true, "pending": true, "failed": true}

// keyAliases renames Classic API elements whose camelCase form would not match the
// names used elsewhere in the tool output.
var keyAliases = map[string]string{
	"audits": "auditLogs",
}

// ComputerHistory fetches the Classic API computer history for a JSS id and
// converts it to a History record with camelCase keys.
func (c *Client) ComputerHistory(ctx context.Context, id int) (*schemas.History, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid computer id %d", id)
	}
	body, err := c.get(ctx, "computerhistory", historyPath+strconv.Itoa(id), nil, "application/xml")
	if err != nil {
		return nil, err
	}
	rec, err := DecodeHistoryXML(body)
	if err != nil {
		return nil, err
	}
	return schemas.NewHistory(rec), nil
}

// DecodeHistoryXML converts a <computer_history> document into a Record. Elements
// holding only repeated records (such as <policy_logs><policy_log/>...) become
// lists; leaf elements become strings.
func DecodeHistoryXML(data []byte) (schemas.Record, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse computer history XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("failed to parse computer history XML: empty document")
	}
	m, ok := convertElement(root).(map[string]interface{})
	if !ok {
		// A root with no children carries no history.
		return schemas.Record{}, nil
	}
	return schemas.Record(m), nil
}

func convertElement(el *etree.Element) interface{} {
	children := el.ChildElements()
	if len(children) == 0 {
		return strings.TrimSpace(el.Text())
	}
	if items, ok := asList(el.Tag, children); ok {
		list := make([]interface{}, 0, len(items))
		for _, item := range items {
			list = append(list, convertElement(item))
		}
		return list
	}

	m := make(map[string]interface{}, len(children))
	for _, child := range children {
		m[camelKey(child.Tag)] = convertElement(child)
	}
	return m
}

// asList reports whether children are repeated records of one tag, ignoring the
// <size> counter the Classic API puts in front of lists. A single record only
// forms a list when the parent is named as its plural (policy_logs/policy_log,
// computer_usage_logs/usage_log) or is a command queue.
func asList(parent string, children []*etree.Element) ([]*etree.Element, bool) {
	var tag string
	items := make([]*etree.Element, 0, len(children))
	for _, child := range children {
		if child.Tag == "size" && len(child.ChildElements()) == 0 {
			continue
		}
		if tag == "" {
			tag = child.Tag
		} else if child.Tag != tag {
			return nil, false
		}
		items = append(items, child)
	}
	if len(items) == 0 {
		// Only a <size> element: an empty list.
		return items, true
	}
	if len(items) > 1 {
		return items, true
	}
	if len(items[0].ChildElements()) == 0 {
		return nil, false
	}
	return items, commandLists[parent] || strings.HasSuffix(parent, items[0].Tag+"s")
}

func camelKey(tag string) string {
	if alias, ok := keyAliases[tag]; ok {
		return alias
	}
	parts := strings.Split(tag, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
