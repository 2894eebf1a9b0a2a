package panel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMegabytes(t *testing.T) {
	tests := map[string]int{
		"512M":      512,
		"1.5G":      1536,
		"2048K":     2,
		"unlimited": 0,
		"":          0,
		"garbage":   0,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseMegabytes(in), in)
	}
}

func TestCpanelClient(t *testing.T) {
	var lastQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "whm root:tok", r.Header.Get("Authorization"))
		lastQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			lastQuery[k] = v[0]
		}
		switch r.URL.Path {
		case "/json-api/listaccts":
			_, _ = w.Write([]byte(`{"metadata":{"result":1,"reason":"OK"},"data":{"acct":[
				{"user":"alice","domain":"alice.example","plan":"basic","email":"a@x.io","suspended":0,"diskused":"120M","disklimit":"1G"},
				{"user":"bob","domain":"bob.example","plan":"pro","suspended":1,"suspendreason":"abuse","diskused":"1.5G","disklimit":"unlimited"}]}}`))
		case "/json-api/showbw":
			_, _ = w.Write([]byte(`{"metadata":{"result":1},"data":{"acct":[{"user":"alice","totalbytes":10485760}]}}`))
		case "/json-api/cpanel":
			switch r.URL.Query().Get("cpanel_jsonapi_func") {
			case "list_pops_with_disk":
				_, _ = w.Write([]byte(`{"result":{"status":1,"data":[{"email":"info@alice.example","_diskquota":104857600,"_diskused":5242880}]}}`))
			case "list_domains":
				_, _ = w.Write([]byte(`{"result":{"status":1,"data":{"main_domain":"alice.example","addon_domains":["shop.example"],"parked_domains":["alice.net"],"sub_domains":["blog.alice.example"]}}}`))
			}
		case "/json-api/suspendacct":
			_, _ = w.Write([]byte(`{"metadata":{"result":1,"reason":"OK"}}`))
		case "/json-api/removeacct":
			_, _ = w.Write([]byte(`{"metadata":{"result":0,"reason":"account not found"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewCpanelClient(Config{Hostname: srv.URL, APIUser: "root", APIToken: "tok"}, srv.Client())
	require.NoError(t, err)
	ctx := context.Background()

	accounts, err := c.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].Username)
	assert.Equal(t, 120, accounts[0].DiskUsedMB)
	assert.Equal(t, 1024, accounts[0].DiskLimitMB)
	assert.Equal(t, 10, accounts[0].BandwidthUsedMB)
	assert.True(t, accounts[1].Suspended)
	assert.Equal(t, "abuse", accounts[1].SuspendReason)

	emails, err := c.ListEmailAccounts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, 100, emails[0].QuotaMB)
	assert.Equal(t, 5, emails[0].UsedMB)
	assert.Equal(t, "alice", lastQuery["cpanel_jsonapi_user"])

	domains, err := c.ListDomains(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []AddonDomain{
		{Domain: "shop.example", Kind: "addon"},
		{Domain: "alice.net", Kind: "parked"},
		{Domain: "blog.alice.example", Kind: "sub"},
	}, domains)

	require.NoError(t, c.SuspendAccount(ctx, "alice", "unpaid"))
	assert.Equal(t, "unpaid", lastQuery["reason"])
	assert.Equal(t, "1", lastQuery["api.version"])

	err = c.TerminateAccount(ctx, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
}
