package ceac

import (
	"context"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

// Selectors for the NIV status-check form and its result surface.
const (
	selLocationDropdown = "#Location_Dropdown"
	selCaseNumber       = "#Visa_Case_Number"
	selPassportNumber   = "#Passport_Number"
	selSurname          = "#Surname"
	selCaptchaInput     = "#Captcha"
	selCaptchaImage     = "#c_status_ctl00_contentplaceholder1_defaultcaptcha_CaptchaImage"
	selSubmitButton     = "#ctl00_ContentPlaceHolder1_btnSubmit"

	// Submission lands on either a result dialog or a validation label.
	selResultOrError = "div[role='dialog'], div.modal, div.popup, div[id*='popup'], div[id*='modal'], span[id*='lblError'], #ctl00_ContentPlaceHolder1_lblError"
)

// submitFallbackJS triggers the ASP.NET postback when the button click is
// intercepted by an overlay.
const submitFallbackJS = `document.getElementById('ctl00_ContentPlaceHolder1_btnSubmit').click();`

// Page is one driven browser page working through the status-check form.
// It implements checker.PageAutomator. Playwright calls carry their own
// timeouts; the ctx parameters exist for the boundary's contract and future
// cancellation support.
type Page struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	formURL string

	closeOnce sync.Once
}

// NavigateToForm loads the form and waits for the location dropdown (or, as
// a fallback, the case number field) to confirm the NIV form rendered.
func (p *Page) NavigateToForm(ctx context.Context) error {
	if _, err := p.page.Goto(p.formURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return checker.WrapError(checker.KindTransient, err, "failed to load status-check form")
	}
	return p.waitForForm()
}

func (p *Page) waitForForm() error {
	opts := playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(15000),
	}
	if _, err := p.page.WaitForSelector(selLocationDropdown, opts); err == nil {
		return nil
	}
	if _, err := p.page.WaitForSelector(selCaseNumber, opts); err == nil {
		return nil
	}
	return checker.NewError(checker.KindFormInteractionFailed,
		"status-check form fields not found; the site layout may have changed")
}

// FillForm selects the location and fills the identity fields.
func (p *Page) FillForm(ctx context.Context, fields checker.FormFields) error {
	if err := p.selectLocation(fields.Location); err != nil {
		return err
	}
	for _, field := range []struct {
		selector string
		value    string
		name     string
	}{
		{selCaseNumber, fields.ApplicationID, "case number"},
		{selPassportNumber, fields.PassportNumber, "passport number"},
		{selSurname, fields.Surname, "surname"},
	} {
		if err := p.page.Fill(field.selector, field.value); err != nil {
			return checker.WrapError(checker.KindFormInteractionFailed, err,
				"failed to fill %s field", field.name)
		}
	}
	return nil
}

// selectLocation matches the caller's location against the dropdown options
// case-insensitively, falling back to an exact label match.
func (p *Page) selectLocation(location string) error {
	options, err := p.page.QuerySelectorAll(selLocationDropdown + " option")
	if err != nil || len(options) == 0 {
		return checker.NewError(checker.KindFormInteractionFailed, "location dropdown not found")
	}

	want := strings.ToUpper(strings.TrimSpace(location))
	for _, option := range options {
		text, err := option.TextContent()
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToUpper(text), want) {
			continue
		}
		value, err := option.GetAttribute("value")
		if err != nil || value == "" {
			continue
		}
		if _, err := p.page.SelectOption(selLocationDropdown, playwright.SelectOptionValues{
			Values: &[]string{value},
		}); err != nil {
			return checker.WrapError(checker.KindFormInteractionFailed, err, "failed to select location")
		}
		return nil
	}

	// Exact label as a last resort.
	if _, err := p.page.SelectOption(selLocationDropdown, playwright.SelectOptionValues{
		Labels: &[]string{location},
	}); err != nil {
		return checker.NewError(checker.KindFormInteractionFailed,
			"location %q not found in dropdown options", location)
	}
	return nil
}

// CaptchaImage screenshots the challenge element.
func (p *Page) CaptchaImage(ctx context.Context) ([]byte, error) {
	handle, err := p.page.WaitForSelector(selCaptchaImage, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10000),
	})
	if err != nil {
		return nil, checker.WrapError(checker.KindFormInteractionFailed, err, "challenge image not found")
	}
	image, err := handle.Screenshot()
	if err != nil {
		return nil, checker.WrapError(checker.KindTransient, err, "failed to capture challenge image")
	}
	return image, nil
}

// SubmitAnswer fills the challenge answer, submits the form and scrapes the
// outcome from the resulting page.
func (p *Page) SubmitAnswer(ctx context.Context, answer string) (*checker.SubmitOutcome, error) {
	if err := p.page.Fill(selCaptchaInput, answer); err != nil {
		return nil, checker.WrapError(checker.KindFormInteractionFailed, err, "challenge input field not found")
	}

	if err := p.page.Click(selSubmitButton); err != nil {
		if _, jsErr := p.page.Evaluate(submitFallbackJS); jsErr != nil {
			return nil, checker.WrapError(checker.KindFormInteractionFailed, jsErr, "failed to submit form")
		}
	}

	// Give the postback time to land on either a result or an error label;
	// the parse below copes when neither appears.
	_, _ = p.page.WaitForSelector(selResultOrError, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(60000),
	})

	html, err := p.page.Content()
	if err != nil {
		return nil, checker.WrapError(checker.KindTransient, err, "failed to read result page")
	}

	outcome, err := ParseResult(html)
	if err != nil {
		return nil, err
	}
	if screenshot, err := p.page.Screenshot(); err == nil {
		outcome.Screenshot = screenshot
	}
	return outcome, nil
}

// Reload refreshes the page so the site issues a fresh challenge.
func (p *Page) Reload(ctx context.Context) error {
	if _, err := p.page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return checker.WrapError(checker.KindTransient, err, "failed to reload form")
	}
	return p.waitForForm()
}

// Close releases the page, context and browser. Idempotent; errors from the
// individual closes are ignored so cleanup always runs through.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		_ = p.page.Close()
		_ = p.context.Close()
		_ = p.browser.Close()
	})
	return nil
}
