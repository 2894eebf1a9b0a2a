package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

func init() {
	Register("cpanel", func(cfg Config) (Client, error) {
		return NewCpanelClient(cfg, nil)
	})
}

// CpanelClient 通过 WHM JSON API v1 管理账号
type CpanelClient struct {
	baseURL string
	auth    string
	http    *http.Client
	limiter *rate.Limiter
}

func NewCpanelClient(cfg Config, hc *http.Client) (*CpanelClient, error) {
	if cfg.Hostname == "" {
		return nil, fmt.Errorf("面板主机名不能为空")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	port := cfg.Port
	if port == 0 {
		port = 2087
	}
	base := cfg.Hostname
	// 测试时允许直接传入完整地址
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = fmt.Sprintf("%s://%s:%d", scheme, cfg.Hostname, port)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &CpanelClient{
		baseURL: strings.TrimRight(base, "/"),
		auth:    fmt.Sprintf("whm %s:%s", cfg.APIUser, cfg.APIToken),
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}, nil
}

type whmMetadata struct {
	Result int    `json:"result"`
	Reason string `json:"reason"`
}

type whmAccount struct {
	User          string `json:"user"`
	Domain        string `json:"domain"`
	Plan          string `json:"plan"`
	Email         string `json:"email"`
	Suspended     int    `json:"suspended"`
	SuspendReason string `json:"suspendreason"`
	DiskUsed      string `json:"diskused"`
	DiskLimit     string `json:"disklimit"`
}

func (c *CpanelClient) ListAccounts(ctx context.Context) ([]Account, error) {
	var resp struct {
		Data struct {
			Acct []whmAccount `json:"acct"`
		} `json:"data"`
	}
	if err := c.whm(ctx, "listaccts", nil, &resp); err != nil {
		return nil, err
	}

	var bw struct {
		Data struct {
			Acct []struct {
				User       string `json:"user"`
				TotalBytes int64  `json:"totalbytes"`
			} `json:"acct"`
		} `json:"data"`
	}
	// 带宽统计失败不影响账号列表
	bandwidth := make(map[string]int)
	if err := c.whm(ctx, "showbw", nil, &bw); err == nil {
		for _, a := range bw.Data.Acct {
			bandwidth[a.User] = int(a.TotalBytes / (1024 * 1024))
		}
	}

	accounts := make([]Account, 0, len(resp.Data.Acct))
	for _, a := range resp.Data.Acct {
		accounts = append(accounts, Account{
			Username:        a.User,
			Domain:          a.Domain,
			Plan:            a.Plan,
			ContactEmail:    a.Email,
			Suspended:       a.Suspended == 1,
			SuspendReason:   a.SuspendReason,
			DiskUsedMB:      parseMegabytes(a.DiskUsed),
			DiskLimitMB:     parseMegabytes(a.DiskLimit),
			BandwidthUsedMB: bandwidth[a.User],
		})
	}
	return accounts, nil
}

func (c *CpanelClient) ListEmailAccounts(ctx context.Context, username string) ([]EmailAccount, error) {
	var resp struct {
		Result struct {
			Status int `json:"status"`
			Data   []struct {
				Email     string      `json:"email"`
				DiskQuota json.Number `json:"_diskquota"`
				DiskUsed  json.Number `json:"_diskused"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := c.uapi(ctx, username, "Email", "list_pops_with_disk", &resp); err != nil {
		return nil, err
	}
	out := make([]EmailAccount, 0, len(resp.Result.Data))
	for _, e := range resp.Result.Data {
		quota, _ := e.DiskQuota.Int64()
		used, _ := e.DiskUsed.Int64()
		out = append(out, EmailAccount{
			Address: e.Email,
			QuotaMB: int(quota / (1024 * 1024)),
			UsedMB:  int(used / (1024 * 1024)),
		})
	}
	return out, nil
}

func (c *CpanelClient) ListDomains(ctx context.Context, username string) ([]AddonDomain, error) {
	var resp struct {
		Result struct {
			Data struct {
				AddonDomains  []string `json:"addon_domains"`
				ParkedDomains []string `json:"parked_domains"`
				SubDomains    []string `json:"sub_domains"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := c.uapi(ctx, username, "DomainInfo", "list_domains", &resp); err != nil {
		return nil, err
	}
	var out []AddonDomain
	for _, d := range resp.Result.Data.AddonDomains {
		out = append(out, AddonDomain{Domain: d, Kind: "addon"})
	}
	for _, d := range resp.Result.Data.ParkedDomains {
		out = append(out, AddonDomain{Domain: d, Kind: "parked"})
	}
	for _, d := range resp.Result.Data.SubDomains {
		out = append(out, AddonDomain{Domain: d, Kind: "sub"})
	}
	return out, nil
}

func (c *CpanelClient) CreateAccount(ctx context.Context, req CreateAccountRequest) error {
	params := url.Values{
		"username":     {req.Username},
		"domain":       {req.Domain},
		"plan":         {req.Plan},
		"contactemail": {req.ContactEmail},
	}
	if req.Password != "" {
		params.Set("password", req.Password)
	}
	return c.whm(ctx, "createacct", params, nil)
}

func (c *CpanelClient) SuspendAccount(ctx context.Context, username, reason string) error {
	return c.whm(ctx, "suspendacct", url.Values{"user": {username}, "reason": {reason}}, nil)
}

func (c *CpanelClient) UnsuspendAccount(ctx context.Context, username string) error {
	return c.whm(ctx, "unsuspendacct", url.Values{"user": {username}}, nil)
}

func (c *CpanelClient) TerminateAccount(ctx context.Context, username string) error {
	return c.whm(ctx, "removeacct", url.Values{"username": {username}}, nil)
}

func (c *CpanelClient) ChangePackage(ctx context.Context, username, plan string) error {
	return c.whm(ctx, "changepackage", url.Values{"user": {username}, "pkg": {plan}}, nil)
}

// whm 调用 WHM API 1 函数并检查 metadata.result
func (c *CpanelClient) whm(ctx context.Context, fn string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api.version", "1")
	body, err := c.get(ctx, "/json-api/"+fn, params)
	if err != nil {
		return err
	}
	var meta struct {
		Metadata whmMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return fmt.Errorf("解析 WHM 响应失败: %w", err)
	}
	if meta.Metadata.Result != 1 {
		return fmt.Errorf("WHM %s 失败: %s", fn, meta.Metadata.Reason)
	}
	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}

// uapi 以指定 cPanel 用户身份调用 UAPI 模块
func (c *CpanelClient) uapi(ctx context.Context, user, module, fn string, out interface{}) error {
	params := url.Values{
		"api.version":               {"1"},
		"cpanel_jsonapi_user":       {user},
		"cpanel_jsonapi_apiversion": {"3"},
		"cpanel_jsonapi_module":     {module},
		"cpanel_jsonapi_func":       {fn},
	}
	body, err := c.get(ctx, "/json-api/cpanel", params)
	if err != nil {
		return err
	}
	var status struct {
		Result struct {
			Status int      `json:"status"`
			Errors []string `json:"errors"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("解析 UAPI 响应失败: %w", err)
	}
	if status.Result.Status != 1 {
		return fmt.Errorf("UAPI %s::%s 失败: %s", module, fn, strings.Join(status.Result.Errors, "; "))
	}
	return json.Unmarshal(body, out)
}

func (c *CpanelClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求面板失败: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("面板返回 HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// parseMegabytes 解析 "512M"、"1.5G"、"unlimited" 等格式
func parseMegabytes(s string) int {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "UNLIMITED" || s == "NONE" {
		return 0
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "G"):
		mult = 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "M"):
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		mult = 1.0 / 1024
		s = strings.TrimSuffix(s, "K")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(v * mult)
}
