package core

import (
	"bytes"

	"github.com/goccy/go-json"
)

// FlexID 是宽松的 ID 类型：兼容字符串、数字以及 {"$oid": "..."} 三种上游格式，统一归一化为字符串。
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
	case data[0] == '{':
		var oid struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(data, &oid); err != nil {
			return err
		}
		*id = FlexID(oid.OID)
	default:
		// 数字按原始字面量保留（与上游 str(id) 的行为一致）
		*id = FlexID(data)
	}
	return nil
}

// Category 是商品所属类目。
type Category struct {
	ID   string
	Name string
}

// Product 是 Catalog 返回的商品记录。
// 只解析打分需要的字段（id、name、description、category、popularity），
// 原始 JSON 保存在 Raw 中，返回给调用方时原样透传。
type Product struct {
	ID          string
	Name        string
	Description string
	Category    Category
	Popularity  float64

	Raw json.RawMessage
}

type productWire struct {
	MongoID     FlexID          `json:"_id"`
	ID          FlexID          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    json.RawMessage `json:"category"`
	CategoryID  FlexID          `json:"categoryId"`
	Popularity  float64         `json:"popularity"`
}

type categoryWire struct {
	MongoID FlexID `json:"_id"`
	ID      FlexID `json:"id"`
	Name    string `json:"name"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var w productWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	p.ID = firstNonEmpty(string(w.MongoID), string(w.ID))
	p.Name = w.Name
	p.Description = w.Description
	p.Popularity = w.Popularity
	p.Category = Category{ID: string(w.CategoryID)}

	// category 既可能是展开的对象，也可能只是一个 ID
	if raw := bytes.TrimSpace(w.Category); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if raw[0] == '{' {
			var cw categoryWire
			if err := json.Unmarshal(raw, &cw); err != nil {
				return err
			}
			p.Category.Name = cw.Name
			if id := firstNonEmpty(string(cw.MongoID), string(cw.ID)); id != "" {
				p.Category.ID = id
			}
		} else {
			var id FlexID
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			if id != "" {
				p.Category.ID = string(id)
			}
		}
	}

	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON 优先透传上游原始 JSON。
func (p Product) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	out := map[string]any{
		"_id":         p.ID,
		"name":        p.Name,
		"description": p.Description,
		"popularity":  p.Popularity,
	}
	if p.Category.ID != "" || p.Category.Name != "" {
		out["category"] = map[string]any{"_id": p.Category.ID, "name": p.Category.Name}
	}
	return json.Marshal(out)
}

// Document 返回用于文本相似度的文档：name + description + category.name。
func (p *Product) Document() string {
	return p.Name + " " + p.Description + " " + p.Category.Name
}

// Purchase 是一条历史购买记录，列表中越靠后越新。
type Purchase struct {
	ProductID  FlexID `json:"productId"`
	CategoryID FlexID `json:"categoryId"`
}

// PurchasedIDs 返回购买过的商品 ID 集合。
func PurchasedIDs(purchases []Purchase) map[string]struct{} {
	ids := make(map[string]struct{}, len(purchases))
	for _, p := range purchases {
		if p.ProductID != "" {
			ids[string(p.ProductID)] = struct{}{}
		}
	}
	return ids
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
