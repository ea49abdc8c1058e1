package secrets

// DefaultFieldPatterns returns glob patterns of field names holding secrets.
func DefaultFieldPatterns() []string {
	return []string{
		"*password*",
		"*passwd*",
		"*secret*",
		"*token*",
		"*api_key*",
		"*credential*",
		"authorization",
		"*bearer*",
		"*code_verifier*",
		"cookie",
	}
}

// DefaultValuePatterns returns regex patterns matching secret values in free text.
func DefaultValuePatterns() []ValuePattern {
	return []ValuePattern{
		{
			Name:    "Bearer Token",
			Pattern: `Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
			Enabled: true,
		},
		{
			Name:    "Basic Auth",
			Pattern: `Basic\s+[A-Za-z0-9+/]+=*`,
			Enabled: true,
		},
		{
			Name:    "JWT Token",
			Pattern: `eyJ[A-Za-z0-9-_=]+\.eyJ[A-Za-z0-9-_=]+\.[A-Za-z0-9-_.+/=]*`,
			Enabled: true,
		},
		{
			Name:    "Token Parameter",
			Pattern: `(refresh_token|access_token|code_verifier)=[^&\s"]+`,
			Enabled: true,
		},
		{
			Name:    "Password in URL",
			Pattern: `[a-zA-Z]{3,10}://[^/\s:@]{3,20}:[^/\s:@]{3,20}@[^\s"]{1,100}`,
			Enabled: true,
		},
		{
			Name:    "Private Key",
			Pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----`,
			Enabled: true,
		},
	}
}

// DefaultHeaders returns the HTTP headers whose values are masked.
func DefaultHeaders() []string {
	return []string{
		"Authorization",
		"Proxy-Authorization",
		"Cookie",
		"Set-Cookie",
		"X-Auth-Token",
	}
}
