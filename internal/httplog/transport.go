package httplog

import (
	"net/http"
)

// Transport wraps base so every round trip goes through the recorder hooks.
// A nil base uses http.DefaultTransport.
func (r *Recorder) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{base: base, rec: r}
}

// Client returns a copy of base whose transport is instrumented.
func (r *Recorder) Client(base *http.Client) *http.Client {
	client := &http.Client{}
	if base != nil {
		copied := *base
		client = &copied
	}
	client.Transport = r.Transport(client.Transport)

	return client
}

type transport struct {
	base http.RoundTripper
	rec  *Recorder
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	sent := t.rec.OnRequest(req)

	resp, err := t.base.RoundTrip(sent)
	if err != nil {
		t.rec.OnError(sent, err)
		return nil, err
	}

	if resp.Request == nil {
		resp.Request = sent
	}
	t.rec.OnResponse(resp)

	return resp, nil
}
