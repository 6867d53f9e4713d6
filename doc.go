// Package shoprec 是一个混合商品推荐服务。
//
// 设计要点：
//   - Pipeline-first: 融合之后的排序、截断、解析、过滤都是 pipeline.Node，可由 YAML 编排
//   - Labels-first: 召回来源、过滤原因等 label 全链路透传，便于解释与观测
//   - 可用性优先: Catalog 故障被视为"无数据"，任何异常都降级为热度兜底
//
// 包结构：
//
//	catalog      Catalog HTTP 客户端（熔断、超时、token 透传）
//	recall       协同过滤、内容相似、热度兜底，以及 Fanout 并发召回与融合
//	hybrid       融合推荐器
//	api          HTTP 接口
//	cmd/shoprec  服务入口
package shoprec
