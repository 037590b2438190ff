package catawiki

import (
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

func newHTTPClient(timeout time.Duration, cloudflareBypass bool) *resty.Client {
	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept-language", "en")
	client.SetTimeout(timeout)

	// The build page sets session cookies the data endpoint expects back.
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		client.SetCookieJar(jar)
	}

	if cloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	return client
}
