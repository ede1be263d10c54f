package models

import "strings"

// MerchantCredentials authenticate one Merchantware call.
// Resolved per attempt; never cached or logged.
type MerchantCredentials struct {
	MerchantName   string
	MerchantSiteID string
	MerchantKey    string
}

// Complete reports whether all three fields are set
func (c MerchantCredentials) Complete() bool {
	return c.MerchantName != "" && c.MerchantSiteID != "" && c.MerchantKey != ""
}

// String redacts the key so credentials are safe in fmt output.
func (c MerchantCredentials) String() string {
	return "MerchantCredentials{name=" + c.MerchantName + ", site=" + c.MerchantSiteID + ", key=[REDACTED]}"
}

// GoString keeps %#v from printing the key.
func (c MerchantCredentials) GoString() string {
	return c.String()
}

// ProcessorSettings is the host's payment processor record.
// user_name, subject and signature map onto the Merchantware credentials;
// password is the publishable key handed to the tokenization widget.
type ProcessorSettings struct {
	ID        int64
	Name      string
	UserName  string
	Password  string
	Signature string
	Subject   string
	IsTest    bool
}

// Credentials maps host settings onto Merchantware credentials.
func (s *ProcessorSettings) Credentials() MerchantCredentials {
	return MerchantCredentials{
		MerchantName:   strings.TrimSpace(s.UserName),
		MerchantSiteID: strings.TrimSpace(s.Subject),
		MerchantKey:    strings.TrimSpace(s.Signature),
	}
}

// CheckConfig lists problems with the processor configuration.
func (s *ProcessorSettings) CheckConfig() []string {
	var problems []string
	if strings.TrimSpace(s.UserName) == "" {
		problems = append(problems, `The "Merchant Name" (user_name) is not set in the Tsys payment processor settings.`)
	}
	if strings.TrimSpace(s.Password) == "" {
		problems = append(problems, `The "Publishable Key" (password) is not set in the Tsys payment processor settings.`)
	}
	if strings.TrimSpace(s.Subject) == "" {
		problems = append(problems, `The "Merchant Site ID" (subject) is not set in the Tsys payment processor settings.`)
	}
	if strings.TrimSpace(s.Signature) == "" {
		problems = append(problems, `The "Merchant Key" (signature) is not set in the Tsys payment processor settings.`)
	}
	return problems
}
