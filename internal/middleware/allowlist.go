package middleware

import (
	"net"
	"net/http"
	"strings"

	"park-puls/internal/logger"
)

// 文档注释：运维接口白名单（IP/CIDR）
// 背景：指标与反馈导出只给内网监控与运营使用；公开的地图与反馈提交不受影响。
// 约束：
// 1) 条目为空时不限制（本地开发）；
// 2) 支持 IPv4/IPv6 单 IP 与 CIDR，无法解析的条目忽略并记录；
// 3) 来源 IP 以 RemoteAddr 为准；指定 realIPHeader 时取该头的首个有效 IP。
type Allowlist struct {
	ips          map[string]struct{}
	cidrs        []*net.IPNet
	realIPHeader string
}

func NewAllowlist(entries []string, realIPHeader string) *Allowlist {
	a := &Allowlist{ips: map[string]struct{}{}, realIPHeader: strings.TrimSpace(realIPHeader)}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			if _, n, err := net.ParseCIDR(e); err == nil {
				a.cidrs = append(a.cidrs, n)
				continue
			}
		} else if ip := net.ParseIP(e); ip != nil {
			a.ips[ip.String()] = struct{}{}
			continue
		}
		logger.L().Warn("ops_allow_invalid", "entry", e)
	}
	return a
}

// Empty：无有效条目
func (a *Allowlist) Empty() bool { return len(a.ips) == 0 && len(a.cidrs) == 0 }

func (a *Allowlist) Wrap(next http.Handler) http.Handler {
	if a.Empty() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := a.extractIP(r)
		if ip != nil && a.allowed(ip) {
			next.ServeHTTP(w, r)
			return
		}
		logger.L().Debug("ops_allow_block", "remote", r.RemoteAddr, "path", r.URL.Path)
		w.Header().Set("content-type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden","message":"This endpoint is restricted"}`))
	})
}

func (a *Allowlist) allowed(ip net.IP) bool {
	if _, ok := a.ips[ip.String()]; ok {
		return true
	}
	for _, n := range a.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (a *Allowlist) extractIP(r *http.Request) net.IP {
	if a.realIPHeader != "" {
		if raw := r.Header.Get(a.realIPHeader); raw != "" {
			first := strings.TrimSpace(strings.Split(raw, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}
