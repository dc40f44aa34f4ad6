package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"

	"github.com/LJTian/NewsRadar/internal/collector"
)

// ProcessedItem 是写入存储层前的扁平结构，每条对应 CrawlResult 中的一个条目
type ProcessedItem struct {
	ID          string `json:"id"`
	SourceID    string `json:"sourceId"`
	SourceName  string `json:"sourceName"`
	Key         string `json:"key"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	MobileURL   string `json:"mobileUrl"`
	PublishedAt string `json:"date"`
	Ranks       []int  `json:"ranks"`
	BestRank    int    `json:"bestRank"`
}

// Flatten 把 sourceId -> key -> item 的嵌套结构展开，按数据源输入顺序、最好排名排序
func Flatten(res *collector.CrawlResult) []ProcessedItem {
	if res == nil {
		return nil
	}
	var out []ProcessedItem
	for _, sourceID := range res.Succeeded() {
		items := res.Results[sourceID]
		rows := make([]ProcessedItem, 0, len(items))
		for key, it := range items {
			rows = append(rows, ProcessedItem{
				ID:          itemID(sourceID, key),
				SourceID:    sourceID,
				SourceName:  res.Names[sourceID],
				Key:         key,
				Title:       it.Title,
				URL:         it.URL,
				MobileURL:   it.MobileURL,
				PublishedAt: it.PublishedAt,
				Ranks:       append([]int(nil), it.Ranks...),
				BestRank:    bestRank(it.Ranks),
			})
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].BestRank != rows[j].BestRank {
				return rows[i].BestRank < rows[j].BestRank
			}
			return rows[i].Key < rows[j].Key
		})
		out = append(out, rows...)
	}
	return out
}

func bestRank(ranks []int) int {
	if len(ranks) == 0 {
		return 0
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r < best {
			best = r
		}
	}
	return best
}

// itemID 同一数据源下同一个 key 的 ID 稳定，便于下游做去重
func itemID(sourceID, key string) string {
	h := sha1.New()
	h.Write([]byte(sourceID))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}
