package core

// RecallConfig 是召回相关的配置接口，用于提供默认值。
type RecallConfig interface {
	// DefaultTopKSimilarUsers 返回默认的 TopK 相似用户（含类目伪用户）数
	DefaultTopKSimilarUsers() int

	// DefaultTopKItems 返回默认的 TopK 物品数
	DefaultTopKItems() int
}

// DefaultRecallConfig 是默认的召回配置实现。
// 与线上默认 top_n=5 保持一致：相似用户数与返回物品数都取 5。
type DefaultRecallConfig struct{}

func (c *DefaultRecallConfig) DefaultTopKSimilarUsers() int {
	return 5
}

func (c *DefaultRecallConfig) DefaultTopKItems() int {
	return 5
}
