package service

import (
	"testing"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSerial(t *testing.T) {
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, uint32(2025031000), nextSerial(0, day))
	assert.Equal(t, uint32(2025031001), nextSerial(2025031000, day))
	assert.Equal(t, uint32(2025031100), nextSerial(2025031007, day.AddDate(0, 0, 1)))
	// 序列号永不回退
	assert.Equal(t, uint32(2025040100), nextSerial(2025040099, day))
}

func newZone(t *testing.T, f *fixture) *model.DnsZone {
	t.Helper()
	c := f.customer(t, "ada@example.com")
	z, err := f.svc.Dns.Create(f.ctx(), dto.CreateDnsZoneRequest{
		Name:       "Example.com",
		CustomerID: c.ID,
		PrimaryNS:  "ns1.host.net",
		AdminEmail: "host.master@example.com",
	})
	require.NoError(t, err)
	return z
}

func TestDnsZoneCreate(t *testing.T) {
	f := newFixture(t)
	z := newZone(t, f)
	assert.Equal(t, "example.com", z.Name)
	assert.Equal(t, uint32(2025031000), z.Serial)
	assert.Equal(t, defaultRefresh, z.Refresh)
	assert.Equal(t, defaultMinimumTTL, z.MinimumTTL)

	_, err := f.svc.Dns.Create(f.ctx(), dto.CreateDnsZoneRequest{
		Name:       "example.com",
		CustomerID: z.CustomerID,
		PrimaryNS:  "ns1.host.net",
		AdminEmail: "a@example.com",
	})
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := f.svc.Dns.Update(f.ctx(), z.ID, dto.UpdateDnsZoneRequest{Refresh: intPtr(7200)})
	require.NoError(t, err)
	assert.Equal(t, 7200, updated.Refresh)
	assert.Equal(t, uint32(2025031001), updated.Serial)
}

func TestDnsRecordValidation(t *testing.T) {
	f := newFixture(t)
	z := newZone(t, f)
	ctx := f.ctx()

	tests := []struct {
		name string
		req  dto.DnsRecordRequest
	}{
		{"bad ipv4", dto.DnsRecordRequest{Name: "www", Type: "A", Content: "300.1.1.1"}},
		{"ipv6 in A", dto.DnsRecordRequest{Name: "www", Type: "A", Content: "2001:db8::1"}},
		{"ipv4 in AAAA", dto.DnsRecordRequest{Name: "www", Type: "AAAA", Content: "192.0.2.1"}},
		{"unknown type", dto.DnsRecordRequest{Name: "www", Type: "PTR", Content: "x.example.com"}},
		{"cname at apex", dto.DnsRecordRequest{Name: "@", Type: "CNAME", Content: "other.example.net"}},
		{"mx without priority", dto.DnsRecordRequest{Name: "@", Type: "MX", Content: "mail.example.com"}},
		{"srv malformed", dto.DnsRecordRequest{Name: "_sip._tcp", Type: "SRV", Content: "5 sip.example.com", Priority: intPtr(10)}},
		{"ttl too low", dto.DnsRecordRequest{Name: "www", Type: "A", Content: "192.0.2.1", TTL: 30}},
		{"bad caa tag", dto.DnsRecordRequest{Name: "@", Type: "CAA", Content: "0 policy letsencrypt.org"}},
		{"absolute name of other zone", dto.DnsRecordRequest{Name: "www.other.com.", Type: "A", Content: "192.0.2.1"}},
		{"suffix without label boundary", dto.DnsRecordRequest{Name: "wwwexample.com.", Type: "A", Content: "192.0.2.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Dns.CreateRecord(ctx, z.ID, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	r, err := f.svc.Dns.CreateRecord(ctx, z.ID, dto.DnsRecordRequest{Name: "www.example.com.", Type: "a", Content: "192.0.2.1"})
	require.NoError(t, err)
	assert.Equal(t, "www", r.Name)
	assert.Equal(t, "A", r.Type)
	assert.Equal(t, defaultRecordTTL, r.TTL)

	_, err = f.svc.Dns.CreateRecord(ctx, 999, dto.DnsRecordRequest{Name: "www", Type: "A", Content: "192.0.2.1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDnsCnameExclusivity(t *testing.T) {
	f := newFixture(t)
	z := newZone(t, f)
	ctx := f.ctx()

	_, err := f.svc.Dns.CreateRecord(ctx, z.ID, dto.DnsRecordRequest{Name: "www", Type: "A", Content: "192.0.2.1"})
	require.NoError(t, err)
	_, err = f.svc.Dns.CreateRecord(ctx, z.ID, dto.DnsRecordRequest{Name: "www", Type: "CNAME", Content: "example.com"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.svc.Dns.CreateRecord(ctx, z.ID, dto.DnsRecordRequest{Name: "www", Type: "A", Content: "192.0.2.1"})
	assert.ErrorIs(t, err, ErrConflict, "duplicate record")
	_, err = f.svc.Dns.CreateRecord(ctx, z.ID, dto.DnsRecordRequest{Name: "www", Type: "A", Content: "192.0.2.2"})
	assert.NoError(t, err, "round robin A records")

	alias, err := f.svc.Dns.CreateRecord(ctx, z.ID, dto.DnsRecordRequest{Name: "blog", Type: "CNAME", Content: "Hosting.Example.NET."})
	require.NoError(t, err)
	assert.Equal(t, "hosting.example.net", alias.Content)
	_, err = f.svc.Dns.CreateRecord(ctx, z.ID, dto.DnsRecordRequest{Name: "blog", Type: "TXT", Content: "hello"})
	assert.ErrorIs(t, err, ErrConflict)

	// 更新记录时排除自身
	updated, err := f.svc.Dns.UpdateRecord(ctx, z.ID, alias.ID, dto.DnsRecordRequest{Name: "blog", Type: "CNAME", Content: "cdn.example.net", TTL: 300})
	require.NoError(t, err)
	assert.Equal(t, "cdn.example.net", updated.Content)
	assert.Equal(t, alias.ID, updated.ID)
}

func TestDnsSerialBumpsOnChanges(t *testing.T) {
	f := newFixture(t)
	z := newZone(t, f)
	ctx := f.ctx()

	r, err := f.svc.Dns.CreateRecord(ctx, z.ID, dto.DnsRecordRequest{Name: "@", Type: "A", Content: "192.0.2.1"})
	require.NoError(t, err)
	got, err := f.svc.Dns.GetByID(ctx, z.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2025031001), got.Serial)

	f.now = fixedNow.AddDate(0, 0, 1)
	require.NoError(t, f.svc.Dns.DeleteRecord(ctx, z.ID, r.ID))
	got, err = f.svc.Dns.GetByID(ctx, z.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2025031100), got.Serial)
	assert.Empty(t, got.Records)

	assert.ErrorIs(t, f.svc.Dns.DeleteRecord(ctx, z.ID, r.ID), ErrNotFound)
}

func TestRelativeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "@"},
		{"@", "@"},
		{"example.com.", "@"},
		{"Example.COM", "@"},
		{"www.example.com.", "www"},
		{"a.b.example.com", "a.b"},
		{"mail", "mail"},
		// 不以点结尾按相对名处理, 导出为 www.other.com.example.com.
		{"www.other.com", "www.other.com"},
	}
	for _, tt := range tests {
		got, err := relativeName(tt.in, "example.com")
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := relativeName("www.other.com.", "example.com")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDnsExportZone(t *testing.T) {
	f := newFixture(t)
	z := newZone(t, f)
	ctx := f.ctx()

	reqs := []dto.DnsRecordRequest{
		{Name: "www", Type: "CNAME", Content: "example.com"},
		{Name: "@", Type: "TXT", Content: "v=spf1 -all", TTL: 300},
		{Name: "@", Type: "MX", Content: "mail.example.com", Priority: intPtr(10)},
		{Name: "@", Type: "A", Content: "192.0.2.1"},
	}
	for _, req := range reqs {
		_, err := f.svc.Dns.CreateRecord(ctx, z.ID, req)
		require.NoError(t, err)
	}

	out, err := f.svc.Dns.ExportZone(ctx, z.ID)
	require.NoError(t, err)
	want := "$ORIGIN example.com.\n" +
		"$TTL 3600\n" +
		"@\tIN\tSOA\tns1.host.net. host\\.master.example.com. (\n" +
		"\t\t2025031004\t; serial\n" +
		"\t\t10800\t; refresh\n" +
		"\t\t3600\t; retry\n" +
		"\t\t604800\t; expire\n" +
		"\t\t3600 )\t; minimum\n" +
		"@\t3600\tIN\tA\t192.0.2.1\n" +
		"@\t3600\tIN\tMX\t10 mail.example.com.\n" +
		"@\t300\tIN\tTXT\t\"v=spf1 -all\"\n" +
		"www\t3600\tIN\tCNAME\texample.com.\n"
	assert.Equal(t, want, out)

	page, err := f.svc.Dns.GetAll(ctx, dto.DnsZoneFilter{Search: "example"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Len(t, page.Items[0].Records, 4)
}

func TestQuoteTXT(t *testing.T) {
	assert.Equal(t, `"say \"hi\""`, quoteTXT(`say "hi"`))
	assert.Equal(t, `"already quoted"`, quoteTXT(`"already quoted"`))
	assert.Equal(t, `"\"a\" \"b\""`, quoteTXT(`"a" "b"`))
	assert.Equal(t, `"C:\\dir"`, quoteTXT(`C:\dir`))
	assert.Equal(t, `"line\010two\195\169"`, quoteTXT("line\ntwo\u00e9"))

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	out := quoteTXT(string(long))
	assert.Equal(t, `"`+string(long[:255])+`" "`+string(long[255:])+`"`, out)
}
