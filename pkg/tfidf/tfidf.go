// Package tfidf 实现 TF-IDF 文本向量化与余弦相似度矩阵。
//
// 默认行为：
//   - 小写化
//   - 分词：连续的字母/数字/下划线，长度 >= 2
//   - 去除英文停用词
//   - 原始词频 × 平滑 IDF：ln((1+n)/(1+df)) + 1
//   - 每行 L2 归一化，因此余弦相似度等于点积
package tfidf

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"
)

// ErrEmptyVocabulary 表示所有文档在分词与去停用词后都没有剩余词项。
var ErrEmptyVocabulary = errors.New("tfidf: empty vocabulary")

// Vector 是稀疏向量，Indices 严格递增。
type Vector struct {
	Indices []int
	Values  []float64
}

// Dot 计算两个稀疏向量的点积。
func (v Vector) Dot(o Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm 返回 L2 范数。
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Vectorizer 是 TF-IDF 向量化器。Fit 之后只读，可并发 Transform。
type Vectorizer struct {
	stopWords map[string]struct{}

	vocabulary map[string]int
	terms      []string
	idf        []float64
}

// Option 配置 Vectorizer。
type Option func(*Vectorizer)

// WithStopWords 替换停用词表；传 nil 表示不去停用词。
func WithStopWords(words []string) Option {
	return func(v *Vectorizer) {
		v.stopWords = toSet(words)
	}
}

// NewVectorizer 创建向量化器，默认使用 EnglishStopWords。
func NewVectorizer(opts ...Option) *Vectorizer {
	v := &Vectorizer{stopWords: toSet(EnglishStopWords)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Tokenize 对文档分词并去除停用词。
func (v *Vectorizer) Tokenize(doc string) []string {
	doc = strings.ToLower(doc)
	tokens := strings.FieldsFunc(doc, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	out := tokens[:0]
	for _, tok := range tokens {
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, stop := v.stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Fit 在文档集合上学习词表和 IDF。
func (v *Vectorizer) Fit(docs []string) error {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range v.Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		vocabulary[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	v.vocabulary = vocabulary
	v.terms = terms
	v.idf = idf
	return nil
}

// Transform 把文档转换为 L2 归一化的 TF-IDF 向量；未登录词被忽略，全零文档得到空向量。
func (v *Vectorizer) Transform(docs []string) []Vector {
	out := make([]Vector, len(docs))
	for d, doc := range docs {
		counts := make(map[int]float64)
		for _, tok := range v.Tokenize(doc) {
			if idx, ok := v.vocabulary[tok]; ok {
				counts[idx]++
			}
		}
		indices := make([]int, 0, len(counts))
		for idx := range counts {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		vec := Vector{Indices: indices, Values: make([]float64, len(indices))}
		for i, idx := range indices {
			vec.Values[i] = counts[idx] * v.idf[idx]
		}
		if norm := vec.Norm(); norm > 0 {
			for i := range vec.Values {
				vec.Values[i] /= norm
			}
		}
		out[d] = vec
	}
	return out
}

// FitTransform 等价于 Fit 后 Transform 同一批文档。
func (v *Vectorizer) FitTransform(docs []string) ([]Vector, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.Transform(docs), nil
}

// Vocabulary 返回按字典序排列的词表。
func (v *Vectorizer) Vocabulary() []string {
	return append([]string(nil), v.terms...)
}

// IDF 返回词项的 IDF 值。
func (v *Vectorizer) IDF(term string) (float64, bool) {
	idx, ok := v.vocabulary[term]
	if !ok {
		return 0, false
	}
	return v.idf[idx], true
}

// Matrix 是 n×n 的对称相似度矩阵（行优先存储）。
type Matrix struct {
	n    int
	data []float64
}

// CosineMatrix 计算 L2 归一化向量两两之间的余弦相似度（即点积）。
func CosineMatrix(vectors []Vector) *Matrix {
	n := len(vectors)
	m := &Matrix{n: n, data: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s := vectors[i].Dot(vectors[j])
			m.data[i*n+j] = s
			m.data[j*n+i] = s
		}
	}
	return m
}

// Size 返回矩阵维度。
func (m *Matrix) Size() int {
	return m.n
}

// At 返回 (i, j) 处的相似度。
func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.n+j]
}

// Row 返回第 i 行（只读视图）。
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.n : (i+1)*m.n]
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
