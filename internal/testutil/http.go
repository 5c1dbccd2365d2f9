package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

// HTTPResult captures HTTP response details for test assertions
type HTTPResult struct {
	Code    int
	Error   error
	Headers http.Header
	Body    []byte
}

// Cookies parses the Set-Cookie headers of the response by name.
func (r HTTPResult) Cookies() map[string]*http.Cookie {
	resp := http.Response{Header: r.Headers}
	cookies := make(map[string]*http.Cookie)
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c
	}
	return cookies
}

// Header represents an HTTP header key-value pair
type Header struct {
	Key   string
	Value string
}

// ContentTypeJSON returns a header for JSON content type
func ContentTypeJSON() Header {
	return Header{
		Key:   "Content-Type",
		Value: "application/json",
	}
}

// Cookies returns a Cookie header carrying the given cookies
func Cookies(cookies ...*http.Cookie) Header {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	return Header{
		Key:   "Cookie",
		Value: strings.Join(parts, "; "),
	}
}

// Cookie is shorthand for a single request cookie
func Cookie(name, value string) *http.Cookie {
	return &http.Cookie{Name: name, Value: value}
}

// CSRFHeader returns the double-submit header
func CSRFHeader(value string) Header {
	return Header{
		Key:   tokens.CSRFHeader,
		Value: value,
	}
}

// Origin returns an Origin header
func Origin(origin string) Header {
	return Header{
		Key:   "Origin",
		Value: origin,
	}
}

// ExpectStatus validates the HTTP status code and fails the test if it doesn't match
func ExpectStatus(
	t *testing.T,
	expected int,
	result HTTPResult,
) {
	t.Helper()
	if result.Error != nil {
		t.Fatalf("request error: %v", result.Error)
	}
	if result.Code != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, result.Code, string(result.Body))
	}
}

// ExpectRedirect validates a redirect response and returns the Location header
func ExpectRedirect(
	t *testing.T,
	result HTTPResult,
) string {
	t.Helper()
	if result.Code != http.StatusFound {
		t.Fatalf("expected redirect (302), got %d. Body: %s", result.Code, string(result.Body))
	}
	location := result.Headers.Get("Location")
	if location == "" {
		t.Fatal("expected Location header in redirect")
	}
	return location
}

// ExpectError validates a JSON error body
func ExpectError(
	t *testing.T,
	expectedStatus int,
	expectedMessage string,
	result HTTPResult,
) {
	t.Helper()
	ExpectStatus(t, expectedStatus, result)
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(result.Body, &body); err != nil {
		t.Fatalf("error body is not JSON: %v\n%s", err, result.Body)
	}
	if body.Error != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, body.Error)
	}
}

// Do performs a request and optionally decodes JSON response
func Do(
	router http.Handler,
	method string,
	url string,
	body string,
	response any,
	headers ...Header,
) HTTPResult {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	res := httptest.NewRecorder()
	for _, h := range headers {
		req.Header.Set(h.Key, h.Value)
	}
	router.ServeHTTP(res, req)

	if response != nil && res.Body.Len() > 0 {
		if err := json.Unmarshal(res.Body.Bytes(), response); err != nil {
			return HTTPResult{
				Code:    res.Code,
				Error:   fmt.Errorf("failed to decode JSON: %v\n%s", err, res.Body.String()),
				Headers: res.Header(),
				Body:    res.Body.Bytes(),
			}
		}
	}

	return HTTPResult{Code: res.Code, Headers: res.Header(), Body: res.Body.Bytes()}
}

// Get performs a GET request and optionally decodes JSON response
func Get(
	router http.Handler,
	url string,
	response any,
	headers ...Header,
) HTTPResult {
	return Do(router, http.MethodGet, url, "", response, headers...)
}

// Post performs a POST request and optionally decodes JSON response
func Post(
	router http.Handler,
	url string,
	body string,
	response any,
	headers ...Header,
) HTTPResult {
	return Do(router, http.MethodPost, url, body, response, headers...)
}

// PostJSON performs a POST with JSON body
func PostJSON(
	router http.Handler,
	urlPath string,
	body string,
	response any,
	headers ...Header,
) HTTPResult {
	return Post(router, urlPath, body, response, append(headers, ContentTypeJSON())...)
}
