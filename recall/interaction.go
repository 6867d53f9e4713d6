package recall

import "math"

// InteractionMatrix 是按插入顺序索引的稀疏交互矩阵：行 = 用户或伪用户，列 = 商品。
// 行与列的顺序在构建后固定，相似度计算与查找共用同一份索引。
type InteractionMatrix struct {
	index map[string]int
	rows  []map[string]float64
	order [][]string // 每行商品的插入顺序，用于稳定地遍历
}

// NewInteractionMatrix 创建空矩阵。
func NewInteractionMatrix() *InteractionMatrix {
	return &InteractionMatrix{index: make(map[string]int)}
}

// AddRow 添加一行并返回行号；key 已存在时返回已有行号。
func (m *InteractionMatrix) AddRow(key string) int {
	if idx, ok := m.index[key]; ok {
		return idx
	}
	idx := len(m.rows)
	m.index[key] = idx
	m.rows = append(m.rows, make(map[string]float64))
	m.order = append(m.order, nil)
	return idx
}

// Set 设置交互权重（覆盖）。
func (m *InteractionMatrix) Set(row int, item string, weight float64) {
	if _, ok := m.rows[row][item]; !ok {
		m.order[row] = append(m.order[row], item)
	}
	m.rows[row][item] = weight
}

// Has 判断某行是否与商品有交互。
func (m *InteractionMatrix) Has(row int, item string) bool {
	_, ok := m.rows[row][item]
	return ok
}

// Items 按插入顺序遍历某行的商品与权重。
func (m *InteractionMatrix) Items(row int, fn func(item string, weight float64)) {
	for _, item := range m.order[row] {
		fn(item, m.rows[row][item])
	}
}

// CosineSimilarity 计算所有行两两之间的余弦相似度（零向量与任何行的相似度为 0）。
func (m *InteractionMatrix) CosineSimilarity() [][]float64 {
	n := len(m.rows)
	norms := make([]float64, n)
	for i := range m.rows {
		norms[i] = math.Sqrt(m.dot(i, i))
	}

	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var s float64
			if norms[i] > 0 && norms[j] > 0 {
				s = m.dot(i, j) / (norms[i] * norms[j])
			}
			sim[i][j] = s
			sim[j][i] = s
		}
	}
	return sim
}

// dot 按插入顺序累加，保证浮点结果可复现。
func (m *InteractionMatrix) dot(i, j int) float64 {
	if len(m.order[i]) > len(m.order[j]) {
		i, j = j, i
	}
	var sum float64
	for _, item := range m.order[i] {
		sum += m.rows[i][item] * m.rows[j][item]
	}
	return sum
}
