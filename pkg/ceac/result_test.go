package ceac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const resultPopupHTML = `
<html><body>
<div role="dialog">
  <h2>Application Received</h2>
  <p>Application ID or Case Number: AA00EILA2X</p>
  <p>Case Created: 08-Jul-2025</p>
  <p>Case Last Updated: 15-Jul-2025</p>
  <p>Your case is open and ready for your interview when you are.</p>
  <button>Close</button>
</div>
</body></html>`

const captchaErrorHTML = `
<html><body>
<form>
  <span id="ctl00_ContentPlaceHolder1_lblError">The code entered does not match the code displayed on the page.</span>
</form>
</body></html>`

const validationErrorHTML = `
<html><body>
<div class="validation-summary-errors">
  <ul><li>Invalid Application ID or Case Number</li></ul>
</div>
</body></html>`

const emptyPageHTML = `<html><body><p>Welcome to the status tracker.</p></body></html>`

func TestParseResultSuccess(t *testing.T) {
	outcome, err := ParseResult(resultPopupHTML)
	require.NoError(t, err)
	require.False(t, outcome.CaptchaRejected)
	require.Empty(t, outcome.SiteError)
	require.NotNil(t, outcome.Status)

	require.Equal(t, "Application Received", outcome.Status.Status)
	require.Equal(t, "AA00EILA2X", outcome.Status.CaseNumber)
	require.Equal(t, "08-Jul-2025", outcome.Status.CaseCreated)
	require.Equal(t, "15-Jul-2025", outcome.Status.CaseLastUpdated)
	require.Contains(t, outcome.Status.Description, "Your case is open")
}

func TestParseResultCaptchaRejected(t *testing.T) {
	outcome, err := ParseResult(captchaErrorHTML)
	require.NoError(t, err)
	require.True(t, outcome.CaptchaRejected)
	require.Nil(t, outcome.Status)
	require.Empty(t, outcome.SiteError)
}

func TestParseResultCaptchaKeyword(t *testing.T) {
	outcome, err := ParseResult(`<html><body><span id="lblError1">Invalid CAPTCHA entered.</span></body></html>`)
	require.NoError(t, err)
	require.True(t, outcome.CaptchaRejected)
}

func TestParseResultSiteError(t *testing.T) {
	outcome, err := ParseResult(validationErrorHTML)
	require.NoError(t, err)
	require.False(t, outcome.CaptchaRejected)
	require.Nil(t, outcome.Status)
	require.Contains(t, outcome.SiteError, "Invalid Application ID")
}

func TestParseResultNothingRecognized(t *testing.T) {
	outcome, err := ParseResult(emptyPageHTML)
	require.NoError(t, err)
	require.Nil(t, outcome.Status)
	require.False(t, outcome.CaptchaRejected)
	require.Contains(t, outcome.SiteError, "could not find status information")
}

func TestParseResultOtherStatuses(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"administrative processing",
			`<html><body><div role="dialog"><h2>Administrative Processing</h2></div></body></html>`,
			"Administrative Processing",
		},
		{
			"issued",
			`<html><body><div class="modal"><h2>Issued</h2><p>Application ID or Case Number: BB11XYZ</p></div></body></html>`,
			"Issued",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := ParseResult(tt.html)
			require.NoError(t, err)
			require.NotNil(t, outcome.Status)
			require.Equal(t, tt.want, outcome.Status.Status)
		})
	}
}

func TestParseResultErrorBeatsStatusText(t *testing.T) {
	// A validation label wins even when stale result text is still present.
	html := `<html><body>
<span id="lblError2">The code entered does not match the code displayed on the page.</span>
<div>Application Received</div>
</body></html>`
	outcome, err := ParseResult(html)
	require.NoError(t, err)
	require.True(t, outcome.CaptchaRejected)
	require.Nil(t, outcome.Status)
}
