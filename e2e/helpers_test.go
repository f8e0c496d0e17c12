package e2e

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/crmqa/crm-e2e/internal/browser"
	"github.com/stretchr/testify/require"
)

const (
	defaultWait = 15 * time.Second
	pollEvery   = 500 * time.Millisecond
)

// run executes actions on page bounded by timeout and fails the test on error.
func run(t *testing.T, page browser.Page, timeout time.Duration, actions ...chromedp.Action) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	require.NoError(t, page.Run(ctx, actions...))
}

// waitForURL polls the page location until it contains fragment.
func waitForURL(ctx context.Context, page browser.Page, fragment string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		var location string
		if err := page.Run(ctx, chromedp.Location(&location)); err == nil && strings.Contains(location, fragment) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for URL containing %q: %w", fragment, ctx.Err())
		case <-ticker.C:
		}
	}
}

// waitForText polls selector until its text contains want.
func waitForText(ctx context.Context, page browser.Page, selector, want string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	var text string
	for {
		err := page.Run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.AtLeast(0)))
		if err == nil && strings.Contains(text, want) {
			return text, nil
		}

		select {
		case <-ctx.Done():
			return text, fmt.Errorf("waiting for %q in %s: %w", want, selector, ctx.Err())
		case <-ticker.C:
		}
	}
}

// fillByName fills the nth input named name inside the record modal.
func fillByName(name, value string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		sel := fmt.Sprintf("records-modal-lwc-detail-panel-wrapper [name='%s']", name)
		if err := chromedp.WaitVisible(sel, chromedp.ByQuery).Do(ctx); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if err := chromedp.SetValue(sel, "", chromedp.ByQuery).Do(ctx); err != nil {
			return fmt.Errorf("clearing %s: %w", name, err)
		}
		return chromedp.SendKeys(sel, value, chromedp.ByQuery).Do(ctx)
	})
}

// formFieldsScript lists the lightning-input-field elements the record modal
// rendered, keyed by their API name.
const formFieldsScript = `Array.from(document.querySelectorAll(
	"records-modal-lwc-detail-panel-wrapper lightning-input-field"
)).map(n => ({
	apiName: n.getAttribute("field-name") || n.getAttribute("data-field-name") || n.getAttribute("data-target-selection-name") || "",
	label: n.getAttribute("data-field-label") || n.getAttribute("aria-label") || n.getAttribute("label") || "",
})).filter(f => f.apiName)`

type formField struct {
	APIName string `json:"apiName"`
	Label   string `json:"label"`
}

// formFields returns the fields of the open record modal.
func formFields(page browser.Page) ([]formField, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWait)
	defer cancel()

	var fields []formField
	if err := page.Run(ctx, chromedp.Evaluate(formFieldsScript, &fields)); err != nil {
		return nil, fmt.Errorf("reading form fields: %w", err)
	}

	return fields, nil
}

var (
	firstNames = []string{"Ana", "Bruno", "Carla", "Diego", "Elisa", "Fabio", "Gabriela", "Hugo"}
	lastNames  = []string{"Silva", "Souza", "Oliveira", "Santos", "Pereira", "Costa", "Almeida", "Lima"}
)

// randomName returns a first and last name, the last one suffixed so reruns
// never collide with earlier records.
func randomName() (string, string) {
	first := firstNames[rand.IntN(len(firstNames))]
	last := lastNames[rand.IntN(len(lastNames))]
	return first, fmt.Sprintf("%s %04d", last, rand.IntN(10000))
}
