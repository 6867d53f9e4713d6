package catalog

import "context"

type tokenKey struct{}

// ContextWithToken 将调用方的 bearer token 写入 context，Client 发起请求时透传给上游。
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext 读取 context 中的 bearer token。
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}
