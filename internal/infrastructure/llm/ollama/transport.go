package ollama

import (
	"context"
	"net/http"

	"github.com/kirillkom/manual-assistant/internal/infrastructure/httpjson"
)

const serviceName = "ollama"

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	err := c.executor.Execute(ctx, serviceName+"."+operation, func(callCtx context.Context) error {
		return httpjson.Post(callCtx, c.httpClient, c.request(path, payload, operation), out)
	}, httpjson.Classify)
	return httpjson.WrapTemporary(serviceName+" "+operation, err)
}

// openStream returns the response body for NDJSON consumption. Only the
// connection attempt runs under the executor; reading the stream does not.
func (c *Client) openStream(ctx context.Context, path string, payload any, operation string) (*http.Response, error) {
	var resp *http.Response
	err := c.executor.Execute(ctx, serviceName+"."+operation, func(callCtx context.Context) error {
		r, err := httpjson.Open(ctx, c.httpClient, c.request(path, payload, operation))
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, httpjson.Classify)
	if err != nil {
		return nil, httpjson.WrapTemporary(serviceName+" "+operation, err)
	}
	return resp, nil
}

func (c *Client) request(path string, payload any, operation string) httpjson.Request {
	return httpjson.Request{
		Service:   serviceName,
		Operation: operation,
		URL:       c.baseURL + path,
		Payload:   payload,
	}
}
