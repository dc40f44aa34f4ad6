package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type itemsEnvelope struct {
	Items []any `json:"items"`
}

// uniqueKey 三位补零排名 + 标题，同名条目在 unique 模式下互不覆盖
func uniqueKey(rank int, title string) string {
	return fmt.Sprintf("%03d_%s", rank, title)
}

// normalizePayload 把 payload 中的 items 按出现顺序转换成归一化记录，排名从 1 开始。
// 标题缺失、不可转为字符串或去空白后为空的条目会被跳过，但仍然占用排名。
func normalizePayload(body []byte, mode KeyMode) (map[string]NormalizedItem, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env itemsEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	out := make(map[string]NormalizedItem, len(env.Items))
	for i, raw := range env.Items {
		rank := i + 1
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is %T, want object", ErrParse, rank, raw)
		}

		title, ok := coerceTitle(item["title"])
		if !ok {
			continue
		}

		entry := NormalizedItem{
			Title:       title,
			URL:         stringField(item, "url"),
			MobileURL:   stringField(item, "mobileUrl"),
			PublishedAt: firstNonEmpty(stringField(item, "date"), stringField(item, "release_time")),
			Ranks:       []int{rank},
		}

		if mode == KeyModeMerge {
			if existing, found := out[title]; found {
				existing.Ranks = append(existing.Ranks, rank)
				out[title] = existing
				continue
			}
			out[title] = entry
			continue
		}
		out[uniqueKey(rank, title)] = entry
	}
	return out, nil
}

// coerceTitle 字符串与整数可以作为标题；浮点、布尔、对象等视为无效
func coerceTitle(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			return "", false
		}
		s = t.String()
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func stringField(item map[string]any, key string) string {
	switch t := item[key].(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
