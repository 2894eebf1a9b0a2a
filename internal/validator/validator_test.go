package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDomainName(t *testing.T) {
	valid := []string{"example.com", "Sub.Example.COM.", "a-b.co.uk", "xn--bcher-kva.example"}
	for _, name := range valid {
		assert.NoError(t, ValidateDomainName(name), name)
	}
	invalid := []string{"", "localhost", "-bad.com", "bad-.com", "exa_mple.com", "example.c0m1", string(make([]byte, 254))}
	for _, name := range invalid {
		assert.Error(t, ValidateDomainName(name), name)
	}
}

func TestValidateRecordName(t *testing.T) {
	for _, name := range []string{"@", "www", "*.dev", "_dmarc", "_sip._tcp"} {
		assert.NoError(t, ValidateRecordName(name), name)
	}
	for _, name := range []string{"", "www.*", "bad name", "-x"} {
		assert.Error(t, ValidateRecordName(name), name)
	}
}

func TestValidateRecordContent(t *testing.T) {
	tests := []struct {
		recordType string
		content    string
		ok         bool
	}{
		{"A", "192.0.2.10", true},
		{"A", "2001:db8::1", false},
		{"AAAA", "2001:db8::1", true},
		{"AAAA", "192.0.2.10", false},
		{"CNAME", "target.example.com.", true},
		{"CNAME", "192.0.2.10", false},
		{"MX", "mail.example.com", true},
		{"TXT", "v=spf1 -all", true},
		{"SRV", "5 5060 sip.example.com", true},
		{"SRV", "5 sip.example.com", false},
		{"CAA", `0 issue "letsencrypt.org"`, true},
		{"CAA", `0 foo "x"`, false},
		{"PTR", "x", false},
		{"TXT", "  ", false},
	}
	for _, tt := range tests {
		err := ValidateRecordContent(tt.recordType, tt.content)
		if tt.ok {
			assert.NoError(t, err, "%s %s", tt.recordType, tt.content)
		} else {
			assert.Error(t, err, "%s %s", tt.recordType, tt.content)
		}
	}
}

func TestRegisterTags(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	type payload struct {
		Domain   string `validate:"domain_name"`
		Tld      string `validate:"tld_extension"`
		Type     string `validate:"dns_type"`
		Currency string `validate:"iso_currency"`
	}
	assert.NoError(t, v.Struct(payload{Domain: "example.com", Tld: ".com", Type: "mx", Currency: "EUR"}))

	err := v.Struct(payload{Domain: "nope", Tld: "..", Type: "PTR", Currency: "XYZ"})
	require.Error(t, err)
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 4)
}
