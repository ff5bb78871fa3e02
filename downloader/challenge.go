package downloader

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gocolly/colly"
)

// ChallengeError is returned when the site answers with an anti-bot
// interstitial instead of the requested resource
type ChallengeError struct {
	URL        string
	StatusCode int
	Indicators []string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("anti-bot challenge: status=%d url=%s indicators=%v", e.StatusCode, e.URL, e.Indicators)
}

// IsChallenge checks if err is (or wraps) a ChallengeError
func IsChallenge(err error) (*ChallengeError, bool) {
	if err == nil {
		return nil, false
	}
	var ce *ChallengeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

var challengeMarkers = map[string]string{
	"cf-browser-verification":      "JS browser verification challenge",
	"challenge-form":               "challenge form",
	"/cdn-cgi/challenge-platform/": "challenge script",
	"cf-chl-":                      "challenge token",
	"captcha":                      "captcha",
}

// DetectChallenge inspects a non-200 response and reports why it looks like
// an anti-bot page. A plain 403 or 503 without body markers is not enough.
func DetectChallenge(status int, header http.Header, body []byte) (bool, []string) {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable && status != http.StatusTooManyRequests {
		return false, nil
	}

	var indicators []string
	if header != nil && header.Get("cf-mitigated") == "challenge" {
		indicators = append(indicators, "cf-mitigated header")
	}

	lower := bytes.ToLower(body)
	for marker, reason := range challengeMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			indicators = append(indicators, reason)
		}
	}
	sort.Strings(indicators)

	return len(indicators) > 0, indicators
}

// challengeFromColly wraps DetectChallenge for colly error callbacks
func challengeFromColly(r *colly.Response) *ChallengeError {
	if r == nil {
		return nil
	}
	var header http.Header
	if r.Headers != nil {
		header = *r.Headers
	}
	ok, indicators := DetectChallenge(r.StatusCode, header, r.Body)
	if !ok {
		return nil
	}
	return &ChallengeError{URL: r.Request.URL.String(), StatusCode: r.StatusCode, Indicators: indicators}
}
