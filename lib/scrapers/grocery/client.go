package grocery

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"time"

	"pricelake/lib/restyutil"
	"pricelake/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/grocery")

// ErrBlocked indicates the upstream has most likely flagged the scraper.
// Retrying will only dig the hole deeper, a human needs to look at it.
var ErrBlocked = errors.New("upstream requires human intervention")

type Client struct {
	http *resty.Client
	opts ClientOptions
}

type ClientOptions struct {
	// hostname of the grocery search API
	Host string
	// path of the search call on the API
	Path string

	// max number of items to request in a page, the API defaults to 60
	PageLimit int
	// the deepest offset the API will serve before erroring out
	MaxPageItems int

	// bounds of the random delay inserted before every request.
	// both zero disables the delay entirely (tests).
	MinDelay time.Duration
	MaxDelay time.Duration

	// retry ceilings for transient upstream failures
	RetryMaxTries   uint64
	RetryMaxElapsed time.Duration
}

func (o *ClientOptions) withDefaults() {
	if o.PageLimit <= 0 {
		o.PageLimit = 60
	}
	if o.MaxPageItems <= 0 {
		o.MaxPageItems = 1000
	}
	if o.RetryMaxTries == 0 {
		o.RetryMaxTries = 15
	}
	if o.RetryMaxElapsed == 0 {
		o.RetryMaxElapsed = 4 * time.Hour
	}
}

func NewClient(opts ClientOptions) (*Client, error) {
	opts.withDefaults()
	if opts.Host == "" || opts.Path == "" {
		return nil, fmt.Errorf("search api host and path are required")
	}

	client := resty.New()
	client.SetBaseURL("https://" + opts.Host)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	// the pickup api sits behind bot protection, so the transport has to
	// look like a browser rather than a go http client
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetHeader("accept", "*/*")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/grocery/http")

	return &Client{http: client, opts: opts}, nil
}

// NewClientWithBaseURL skips the https scheme assumption, used by tests
// that point the client at an httptest server.
func NewClientWithBaseURL(baseUrl string, opts ClientOptions) (*Client, error) {
	if opts.Host == "" {
		opts.Host = "test"
	}
	c, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	c.http.SetBaseURL(baseUrl)
	// bot-protection headers are pointless against httptest and the
	// wrapped transport breaks its local round trips
	c.http.GetClient().Transport = nil
	return c, nil
}

func (c *Client) SetInstrumentOutput(output restyutil.InstrumentOutput) {
	restyutil.InstrumentClient(c.http, output)
}

func (c *Client) PageLimit() int {
	return c.opts.PageLimit
}

func (c *Client) Host() string {
	return c.opts.Host
}

func (c *Client) SearchPath() string {
	return c.opts.Path
}

// politenessDelay sleeps somewhere between MinDelay and MaxDelay so request
// timing doesn't look machine-generated.
func (c *Client) politenessDelay(ctx context.Context) error {
	if c.opts.MaxDelay <= 0 {
		return nil
	}
	ms, err := random.IntRange(int(c.opts.MinDelay.Milliseconds()), int(c.opts.MaxDelay.Milliseconds()))
	if err != nil {
		return err
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// get fetches a url relative to the client base, classifying failures the
// way the upstream has been observed to behave:
//
//	429, 403 and 5xx come and go, so they are retried with backoff.
//	the 4xx family that signals a block (or a broken request) is permanent.
func (c *Client) get(ctx context.Context, url string) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "get")
	defer span.End()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.opts.RetryMaxElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.opts.RetryMaxTries), ctx)

	var res *resty.Response
	operation := func() error {
		err := c.politenessDelay(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		res, err = c.http.R().
			SetContext(ctx).
			Get(url)
		if err != nil {
			// transport-level failure, worth retrying
			return err
		}

		status := res.StatusCode()
		switch {
		case status == 200:
			return nil
		case status == 429 || status >= 500 && status < 600:
			return fmt.Errorf("transient upstream status %d", status)
		case status == 403:
			// sometimes a 403 is just the bot protection warming up
			return fmt.Errorf("got 403, backing off")
		case status == 400 || status == 401 || status == 402 || status == 404 ||
			status == 405 || status == 406 || status == 410:
			return backoff.Permanent(fmt.Errorf("%w: we may have been blocked (status %d)", ErrBlocked, status))
		default:
			return backoff.Permanent(fmt.Errorf("%w: unexpected status %d", ErrBlocked, status))
		}
	}

	err := backoff.Retry(operation, policy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}
