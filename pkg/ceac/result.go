package ceac

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

// selErrorLabels covers the places the tracker surfaces validation failures.
const selErrorLabels = "span[id*='lblError'], .error-message, .validation-summary-errors, .alert-danger"

// knownStatuses are the result headings the tracker is known to render.
var knownStatuses = []string{
	"Application Received",
	"Administrative Processing",
	"Issued",
	"Refused",
}

// challengePhrases identify a rejected challenge answer in the validation
// text. The site has no structured signal for this, so the adapter owns the
// phrasing knowledge and hands the orchestrator a boolean.
var challengePhrases = []string{
	"captcha",
	"code entered does not match",
	"characters you entered",
}

var (
	caseNumberRe  = regexp.MustCompile(`Application ID or Case Number:\s*([A-Z0-9]+)`)
	caseCreatedRe = regexp.MustCompile(`Case Created:\s*(\d{1,2}-[A-Za-z]{3}-\d{4})`)
	caseUpdatedRe = regexp.MustCompile(`Case Last Updated:\s*(\d{1,2}-[A-Za-z]{3}-\d{4})`)
	descriptionRe = regexp.MustCompile(`Your case[^.]*\.`)
)

// ParseResult turns the post-submit page HTML into a structured outcome:
// a recognized status payload, a challenge rejection, or the site's
// validation message.
func ParseResult(html string) (*checker.SubmitOutcome, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, checker.WrapError(checker.KindFatal, err, "failed to parse result page")
	}

	if messages := errorMessages(doc); len(messages) > 0 {
		joined := strings.Join(messages, " ")
		if isChallengeRejection(joined) {
			return &checker.SubmitOutcome{CaptchaRejected: true}, nil
		}
		return &checker.SubmitOutcome{SiteError: joined}, nil
	}

	body := normalizeSpace(doc.Find("body").Text())
	if status := extractStatus(body); status != nil {
		return &checker.SubmitOutcome{Status: status}, nil
	}

	return &checker.SubmitOutcome{SiteError: "could not find status information on the page"}, nil
}

func errorMessages(doc *goquery.Document) []string {
	var messages []string
	doc.Find(selErrorLabels).Each(func(_ int, sel *goquery.Selection) {
		if text := normalizeSpace(sel.Text()); text != "" {
			messages = append(messages, text)
		}
	})
	return messages
}

func isChallengeRejection(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range challengePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func extractStatus(body string) *checker.CaseStatus {
	var status checker.CaseStatus
	for _, heading := range knownStatuses {
		if strings.Contains(body, heading) {
			status.Status = heading
			break
		}
	}
	if status.Status == "" {
		return nil
	}

	if m := caseNumberRe.FindStringSubmatch(body); m != nil {
		status.CaseNumber = m[1]
	}
	if m := caseCreatedRe.FindStringSubmatch(body); m != nil {
		status.CaseCreated = m[1]
	}
	if m := caseUpdatedRe.FindStringSubmatch(body); m != nil {
		status.CaseLastUpdated = m[1]
	}
	if m := descriptionRe.FindString(body); m != "" {
		status.Description = m
	}
	return &status
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
