package utils

import "context"

type requestMetaKey struct{}

// RequestMeta 请求追踪信息，随 context 传递到服务层用于日志
type RequestMeta struct {
	RequestID string
	ClientIP  string
}

// WithRequestMeta 将请求追踪信息写入 context
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom 从 context 读取请求追踪信息，不存在时返回零值
func RequestMetaFrom(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
