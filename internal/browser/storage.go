package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/crmqa/crm-e2e/internal/state"
)

const localStorageScript = `JSON.stringify({
	origin: window.location.origin,
	items: Object.keys(window.localStorage).map(function (k) {
		return {name: k, value: window.localStorage.getItem(k)};
	})
})`

// restoreStorageState sets the saved cookies and installs a script that
// repopulates local storage whenever a document of a saved origin loads.
func restoreStorageState(st *state.StorageState) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(st.Cookies) > 0 {
			if err := network.SetCookies(cookieParams(st.Cookies)).Do(ctx); err != nil {
				return fmt.Errorf("restoring cookies: %w", err)
			}
		}

		if len(st.Origins) == 0 {
			return nil
		}

		script, err := localStorageInitScript(st.Origins)
		if err != nil {
			return err
		}

		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			return fmt.Errorf("installing local storage script: %w", err)
		}

		return nil
	})
}

func cookieParams(cookies []state.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))

	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			param.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			expires := cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
			param.Expires = &expires
		}
		params = append(params, param)
	}

	return params
}

func localStorageInitScript(origins []state.Origin) (string, error) {
	byOrigin := make(map[string]map[string]string, len(origins))
	for _, o := range origins {
		items := make(map[string]string, len(o.LocalStorage))
		for _, kv := range o.LocalStorage {
			items[kv.Name] = kv.Value
		}
		byOrigin[o.Origin] = items
	}

	data, err := json.Marshal(byOrigin)
	if err != nil {
		return "", fmt.Errorf("encoding local storage: %w", err)
	}

	return fmt.Sprintf(`(function () {
	var saved = %s;
	var items = saved[window.location.origin];
	if (!items) { return; }
	Object.keys(items).forEach(function (k) { window.localStorage.setItem(k, items[k]); });
})();`, data), nil
}

type localStorageDump struct {
	Origin string            `json:"origin"`
	Items  []state.NameValue `json:"items"`
}

// captureStorageState reads browser cookies and the local storage of every
// page's current origin.
func captureStorageState(ctx context.Context, pages []*chromePage) (*state.StorageState, error) {
	st := &state.StorageState{Cookies: []state.Cookie{}, Origins: []state.Origin{}}

	var cookies []*network.Cookie
	if err := pages[0].Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	})); err != nil {
		return nil, fmt.Errorf("reading cookies: %w", err)
	}

	for _, c := range cookies {
		st.Cookies = append(st.Cookies, state.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}

	seen := make(map[string]bool)
	for _, p := range pages {
		var raw string
		if err := p.Run(ctx, chromedp.Evaluate(localStorageScript, &raw)); err != nil {
			p.log.WithError(err).Debug("reading local storage failed")
			continue
		}

		var dump localStorageDump
		if err := json.Unmarshal([]byte(raw), &dump); err != nil || dump.Origin == "" || dump.Origin == "null" {
			continue
		}
		if seen[dump.Origin] {
			continue
		}
		seen[dump.Origin] = true

		sort.Slice(dump.Items, func(i, j int) bool { return dump.Items[i].Name < dump.Items[j].Name })
		if dump.Items == nil {
			dump.Items = []state.NameValue{}
		}
		st.Origins = append(st.Origins, state.Origin{Origin: dump.Origin, LocalStorage: dump.Items})
	}

	return st, nil
}
