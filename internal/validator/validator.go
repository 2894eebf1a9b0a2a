// Package validator 域名、主机名与 DNS 记录的校验规则, service 层与 gin 绑定共用
package validator

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	// 单个标签: 字母数字开头结尾, 中间允许连字符
	labelRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)
	// 记录名标签额外允许下划线 (_dmarc, _sip._tcp) 和通配符
	recordLabelRegex = regexp.MustCompile(`^(?:\*|[a-z0-9_](?:[a-z0-9_-]{0,61}[a-z0-9_])?)$`)
	tldRegex         = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)
)

// RecordTypes 支持的 DNS 记录类型
var RecordTypes = []string{"A", "AAAA", "CNAME", "MX", "TXT", "NS", "SRV", "CAA"}

// NormalizeDomain 小写并去掉末尾的点
func NormalizeDomain(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// ValidateDomainName 校验完整域名: 至少两个标签, 每个标签 1-63 字符, 总长不超过 253
func ValidateDomainName(name string) error {
	name = NormalizeDomain(name)
	if name == "" {
		return fmt.Errorf("域名不能为空")
	}
	if len(name) > 253 {
		return fmt.Errorf("'%s' 超过 253 个字符", name)
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return fmt.Errorf("'%s' 缺少顶级域", name)
	}
	for _, l := range labels {
		if !labelRegex.MatchString(l) {
			return fmt.Errorf("'%s' 不是一个格式合法的域名", name)
		}
	}
	if !tldRegex.MatchString(labels[len(labels)-1]) {
		return fmt.Errorf("'%s' 的顶级域不合法", name)
	}
	return nil
}

// ValidateHostname 与域名规则相同, 允许末尾带点的绝对名
func ValidateHostname(host string) error {
	return ValidateDomainName(host)
}

// ValidateTldExtension 形如 ".com" 或 "co.uk"
func ValidateTldExtension(ext string) error {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return fmt.Errorf("TLD 不能为空")
	}
	for _, l := range strings.Split(ext, ".") {
		if !labelRegex.MatchString(l) {
			return fmt.Errorf("'%s' 不是合法的 TLD", ext)
		}
	}
	return nil
}

// ValidateRecordName 相对记录名, "@" 表示区域根
func ValidateRecordName(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "@" {
		return nil
	}
	if name == "" || len(name) > 253 {
		return fmt.Errorf("记录名长度不合法")
	}
	for i, l := range strings.Split(name, ".") {
		if l == "*" && i != 0 {
			return fmt.Errorf("通配符只能出现在最左侧")
		}
		if !recordLabelRegex.MatchString(l) {
			return fmt.Errorf("'%s' 不是合法的记录名", name)
		}
	}
	return nil
}

// IsRecordType 是否为支持的记录类型
func IsRecordType(t string) bool {
	for _, rt := range RecordTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// ValidateRecordContent 根据记录类型校验记录值
func ValidateRecordContent(recordType, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("记录值不能为空")
	}
	switch recordType {
	case "A":
		ip := net.ParseIP(content)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("'%s' 不是一个合法的IPv4地址", content)
		}
	case "AAAA":
		ip := net.ParseIP(content)
		if ip == nil || ip.To4() != nil {
			return fmt.Errorf("'%s' 不是一个合法的IPv6地址", content)
		}
	case "CNAME", "NS", "MX":
		if err := ValidateHostname(content); err != nil {
			return fmt.Errorf("%s 记录必须指向主机名: %w", recordType, err)
		}
	case "TXT":
		if len(content) > 4096 {
			return fmt.Errorf("TXT 记录过长")
		}
	case "SRV":
		// weight port target, 优先级单独存放
		parts := strings.Fields(content)
		if len(parts) != 3 {
			return fmt.Errorf("SRV 记录格式应为 'weight port target'")
		}
		for _, p := range parts[:2] {
			if n, err := strconv.Atoi(p); err != nil || n < 0 || n > 65535 {
				return fmt.Errorf("SRV 记录的 weight/port 必须在 0-65535 之间")
			}
		}
		if parts[2] != "." {
			if err := ValidateHostname(parts[2]); err != nil {
				return fmt.Errorf("SRV 目标不合法: %w", err)
			}
		}
	case "CAA":
		// flags tag value
		parts := strings.SplitN(content, " ", 3)
		if len(parts) != 3 {
			return fmt.Errorf("CAA 记录格式应为 'flags tag value'")
		}
		if n, err := strconv.Atoi(parts[0]); err != nil || n < 0 || n > 255 {
			return fmt.Errorf("CAA flags 必须在 0-255 之间")
		}
		switch parts[1] {
		case "issue", "issuewild", "iodef":
		default:
			return fmt.Errorf("不支持的 CAA tag '%s'", parts[1])
		}
	default:
		return fmt.Errorf("不支持的记录类型 '%s'", recordType)
	}
	return nil
}
