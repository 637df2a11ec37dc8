package cachebuster

import (
	"net/url"
	"strconv"
	"strings"
)

// Rewrite 给资源 URL 追加版本号参数
//
// 已存在同名参数时替换而不是重复追加，其余参数保持原顺序；token 为 0 时原样返回。
func Rewrite(src, key string, token int64) string {
	if token == 0 {
		return src
	}
	return SetQueryParam(src, key, strconv.FormatInt(token, 10))
}

// SetQueryParam 设置查询参数，替换所有同名参数并追加到末尾
func SetQueryParam(src, key, value string) string {
	if key == "" || src == "" {
		return src
	}
	path, kept, fragment, hasFragment := splitQuery(src, key)
	kept = append(kept, url.QueryEscape(key)+"="+url.QueryEscape(value))
	return joinQuery(path, kept, fragment, hasFragment)
}

// RemoveQueryParam 删除所有同名查询参数
func RemoveQueryParam(src, key string) string {
	if key == "" || src == "" {
		return src
	}
	path, kept, fragment, hasFragment := splitQuery(src, key)
	return joinQuery(path, kept, fragment, hasFragment)
}

func splitQuery(src, key string) (path string, kept []string, fragment string, hasFragment bool) {
	base, fragment, hasFragment := strings.Cut(src, "#")
	path, query, _ := strings.Cut(base, "?")

	kept = make([]string, 0, 4)
	if query == "" {
		return path, kept, fragment, hasFragment
	}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		name, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(name); err == nil {
			name = unescaped
		}
		if name == key {
			continue
		}
		kept = append(kept, pair)
	}
	return path, kept, fragment, hasFragment
}

func joinQuery(path string, kept []string, fragment string, hasFragment bool) string {
	out := path
	if len(kept) > 0 {
		out += "?" + strings.Join(kept, "&")
	}
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

// Rewriter 渲染阶段的 URL 改写器，绑定一次请求的版本号
type Rewriter struct {
	Key   string
	Token int64
}

// NewRewriter 创建改写器
func NewRewriter(key string, token int64) Rewriter {
	return Rewriter{Key: key, Token: token}
}

// Rewrite 改写单个 URL
func (r Rewriter) Rewrite(src string) string {
	return Rewrite(src, r.Key, r.Token)
}

// RewriteAll 批量改写，返回新切片
func (r Rewriter) RewriteAll(srcs []string) []string {
	out := make([]string, len(srcs))
	for i, src := range srcs {
		out[i] = r.Rewrite(src)
	}
	return out
}
