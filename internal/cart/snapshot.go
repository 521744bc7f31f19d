package cart

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeSnapshot adopts a persisted snapshot. Ids are trimmed; entries without a
// string id or with a negative price are dropped, duplicate ids keep their first
// occurrence and quantities are pulled back inside the item's bounds. The second
// return value counts dropped entries.
func decodeSnapshot(data []byte) ([]Item, int, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, 0, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode cart snapshot: %w", err)
	}

	items := make([]Item, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	dropped := 0
	for _, entry := range raw {
		var item Item
		if err := json.Unmarshal(entry, &item); err != nil {
			dropped++
			continue
		}
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" || item.UnitPrice.IsNegative() {
			dropped++
			continue
		}
		if _, dup := seen[item.ID]; dup {
			dropped++
			continue
		}
		seen[item.ID] = struct{}{}
		if item.StockLimit < 0 {
			item.StockLimit = 0
		}
		item.Quantity = clampQuantity(item.Quantity, item.Ceiling())
		items = append(items, item)
	}
	return items, dropped, nil
}

func encodeSnapshot(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(items)
}
