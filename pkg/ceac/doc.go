// Package ceac adapts the CEAC visa status tracker site to the checker's
// PageAutomator boundary using Playwright-driven Chromium.
//
// The Driver owns the Playwright runtime and launches one hardened browser
// per session; a Page walks the NIV status form (location dropdown, case
// number, passport number, surname), captures the challenge image, submits
// the answer and turns the resulting page into a structured SubmitOutcome.
// The site is non-cooperating: selectors follow the tracker's current
// layout, and result extraction is text scraping over the rendered HTML.
package ceac
